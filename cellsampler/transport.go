// Package cellsampler implements the engineering-mode AT command scraper
// that samples serving-cell and common-indicator reports from the
// secondary AT channel (SMD10-style), the source of the "signal report"
// command reply and of the periodic network-state snapshot consumed by
// the call-audio router.
package cellsampler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Transport is an established, bidirectional byte stream to the AT
// channel. A serial.Port or a plain character-device file both satisfy
// it.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport. Mirrors the equivalent abstraction the
// gateway's modem package uses for its own serial bring-up.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// ErrMissingPort is returned by SerialDialer.Dial when PortName is empty.
var ErrMissingPort = errors.New("cellsampler: missing AT port name")

// SerialDialer opens the AT channel over a serial-style character
// device using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	Mode     *serial.Mode
}

// Dial opens the port, racing the open against ctx cancellation.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, ErrMissingPort
	}

	type result struct {
		p   serial.Port
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := serial.Open(d.PortName, d.Mode)
		ch <- result{p: p, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			r := <-ch
			if r.err == nil && r.p != nil {
				_ = r.p.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open %s: %w", d.PortName, r.err)
		}
		return r.p, nil
	}
}
