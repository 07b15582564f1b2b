package cellsampler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/openqti-go/qtisupervisor/at"
)

// DefaultATTimeout bounds how long a single AT exchange may take before
// the session gives up and surfaces an error to the caller, who is free
// to retry on the next sampling tick.
const DefaultATTimeout = 2 * time.Second

// ErrNotOpen is returned by Exec when the session's transport hasn't
// been established yet.
var ErrNotOpen = errors.New("cellsampler: session not open")

// Session manages a single AT command/response exchange over a
// Transport, reusing the same line-splitting and classification rules
// as the host-side AT stack (at.Splitter/at.Classify) since the
// engineering channel speaks the same textual protocol.
type Session struct {
	mu        sync.Mutex
	transport Transport
	scanner   *bufio.Scanner
	atTimeout time.Duration
}

// Open dials dialer and performs a light handshake (AT, ATE0,
// AT+CMEE=2) to put the channel into a known, non-echoing state. Unlike
// the gateway's own modem bring-up this never touches SIM state or SMS
// text mode: the engineering channel is read-only telemetry.
func Open(ctx context.Context, dialer Dialer, atTimeout time.Duration) (*Session, error) {
	if atTimeout <= 0 {
		atTimeout = DefaultATTimeout
	}
	transport, err := dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(transport)
	scanner.Split(at.Splitter)

	s := &Session{transport: transport, scanner: scanner, atTimeout: atTimeout}

	initCtx, cancel := context.WithTimeout(ctx, atTimeout)
	defer cancel()
	if _, err := s.Exec(initCtx, at.CmdAt); err != nil {
		transport.Close()
		return nil, fmt.Errorf("cell AT channel not responding: %w", err)
	}
	if _, err := s.Exec(initCtx, at.CmdEchoOff); err != nil {
		transport.Close()
		return nil, fmt.Errorf("disable AT echo: %w", err)
	}
	_, _ = s.Exec(initCtx, at.CmdVerboseErrors) // best-effort, not every modem supports it

	return s, nil
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}

func (s *Session) readToken() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.scanner.Text()), nil
}

// Exec writes cmd and collects response lines until a final result code
// (or the SMS-prompt token, unused on this channel but handled for
// parity with at.Classify's full set) is seen.
func (s *Session) Exec(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		return "", ErrNotOpen
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.atTimeout)
		defer cancel()
	}
	if d, ok := s.transport.(interface{ SetReadDeadline(time.Time) error }); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetReadDeadline(deadline)
		}
	}

	wire := strings.TrimSpace(cmd) + "\r"
	if _, err := io.WriteString(s.transport, wire); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}

	var lines []string
	for {
		select {
		case <-ctx.Done():
			return strings.Join(lines, "\n"), ctx.Err()
		default:
		}

		token, err := s.readToken()
		if err != nil {
			return strings.Join(lines, "\n"), err
		}
		if token == "" || token == strings.TrimSpace(cmd) {
			continue
		}

		switch at.Classify(token) {
		case at.TypeFinal:
			lines = append(lines, token)
			if token == at.OK {
				return strings.Join(lines, "\n"), nil
			}
			return strings.Join(lines, "\n"), errors.New(token)
		case at.TypeData:
			lines = append(lines, token)
		case at.TypeURC:
			continue
		case at.TypePrompt:
			lines = append(lines, token)
			return strings.Join(lines, "\n"), nil
		}
	}
}
