// Package proxy implements the generic two-descriptor byte-stream proxy
// (C2): forward each direction until either side closes, with per-direction
// hook callbacks and a USB-suspend-aware readiness gate.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// MaxPacketSize is the largest single read the proxy performs per
// readiness wake (spec.md §4.2).
const MaxPacketSize = 4096

// ReopenBackoff is the pause between a terminated pair closing and the
// next open attempt (spec.md §4.2, §7 PeerClosed policy).
const ReopenBackoff = 10 * time.Millisecond

// Endpoint is the minimal descriptor contract the proxy needs: a readable,
// writable, closeable file with a raw fd for readiness polling.
// *devicepath.Endpoint satisfies this.
type Endpoint interface {
	io.Reader
	io.Writer
	io.Closer
	Fd() uintptr
	String() string
}

// Opener (re)opens an Endpoint, used so a proxy can reopen both descriptors
// after a terminate (spec.md §4.2: "the pair is reopened after a 10ms
// backoff").
type Opener func() (Endpoint, error)

// Hook inspects (and may rewrite) a forwarded packet. Returning drop=true
// absorbs the packet: nothing is written to the peer, and the hook is free
// to have already produced its own side effects (e.g. enqueuing a reply)
// through a different path. out is ignored when drop is true.
type Hook func(buf []byte) (out []byte, drop bool)

func passThrough(buf []byte) ([]byte, bool) { return buf, false }

// StreamPair is the C2 contract: two Endpoints and a direction-pair of
// hooks; a pass ends when the inner loop returns. Writes to either endpoint are serialized by a
// per-endpoint mutex, since forwarding and synthetic injection (e.g. the
// SMS tick worker) can both target the same descriptor concurrently
// (spec.md §5).
type StreamPair struct {
	NameA, NameB string
	OpenA, OpenB Opener
	HookAtoB     Hook
	HookBtoA     Hook
	Logger       *slog.Logger

	// UsbReady reports whether the USB current draw is high enough that
	// it's safe to perform I/O (spec.md §4.2's suspend gate). nil means
	// always ready.
	UsbReady func() bool
	// SuspendSleep is invoked when UsbReady returns false, instead of
	// doing I/O this wake. Defaults to a short real sleep.
	SuspendSleep func()

	// OnTerminate, if set, is called every time the inner loop ends and
	// the pair is about to be reopened, letting callers count dirty
	// reconnects.
	OnTerminate func(err error)

	mu       sync.Mutex
	a, b     Endpoint
	writeMuA sync.Mutex
	writeMuB sync.Mutex
}

func (p *StreamPair) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *StreamPair) hookAtoB() Hook {
	if p.HookAtoB != nil {
		return p.HookAtoB
	}
	return passThrough
}

func (p *StreamPair) hookBtoA() Hook {
	if p.HookBtoA != nil {
		return p.HookBtoA
	}
	return passThrough
}

func (p *StreamPair) suspendSleep() {
	if p.SuspendSleep != nil {
		p.SuspendSleep()
		return
	}
	time.Sleep(50 * time.Millisecond)
}

func (p *StreamPair) usbReady() bool {
	if p.UsbReady == nil {
		return true
	}
	return p.UsbReady()
}

// Run is the outer loop: open both endpoints, run the inner forwarding
// loop until termination, close both, back off, and repeat. It returns
// only when ctx is cancelled.
func (p *StreamPair) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a, err := p.OpenA()
		if err != nil {
			p.logger().Error("proxy open failed", "side", p.NameA, "error", err)
			if !sleepCtx(ctx, ReopenBackoff) {
				return ctx.Err()
			}
			continue
		}
		b, err := p.OpenB()
		if err != nil {
			a.Close()
			p.logger().Error("proxy open failed", "side", p.NameB, "error", err)
			if !sleepCtx(ctx, ReopenBackoff) {
				return ctx.Err()
			}
			continue
		}

		p.mu.Lock()
		p.a, p.b = a, b
		p.mu.Unlock()

		p.logger().Info("proxy pair up", "a", p.NameA, "b", p.NameB)
		err = p.innerLoop(ctx, a, b)
		a.Close()
		b.Close()
		p.logger().Info("proxy pair terminated", "a", p.NameA, "b", p.NameB, "reason", err)
		if p.OnTerminate != nil {
			p.OnTerminate(err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sleepCtx(ctx, ReopenBackoff) {
			return ctx.Err()
		}
	}
}

var errPeerClosed = errors.New("peer closed")

// innerLoop repeatedly waits for readability on either endpoint, reads up
// to MaxPacketSize, runs the direction's hook, and writes the (possibly
// rewritten) buffer to the opposite endpoint. A zero-length read marks the
// pair terminating.
func (p *StreamPair) innerLoop(ctx context.Context, a, b Endpoint) error {
	bufA := make([]byte, MaxPacketSize)
	bufB := make([]byte, MaxPacketSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !p.usbReady() {
			p.suspendSleep()
			continue
		}

		readableA, readableB, err := poll(a.Fd(), b.Fd(), 200*time.Millisecond)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}

		if readableA {
			n, rerr := a.Read(bufA)
			if n == 0 || rerr != nil {
				return errPeerClosed
			}
			if err := p.forward(bufA[:n], p.hookAtoB(), b, &p.writeMuB, p.NameB); err != nil {
				return err
			}
		}
		if readableB {
			n, rerr := b.Read(bufB)
			if n == 0 || rerr != nil {
				return errPeerClosed
			}
			if err := p.forward(bufB[:n], p.hookBtoA(), a, &p.writeMuA, p.NameA); err != nil {
				return err
			}
		}
	}
}

func (p *StreamPair) forward(data []byte, hook Hook, dst Endpoint, dstMu *sync.Mutex, dstName string) error {
	out, drop := hook(data)
	if drop {
		return nil
	}
	return p.writeTo(dst, dstMu, dstName, out)
}

// writeTo performs a single whole-frame write, serialized against any other
// writer of dst (forwarding or synthetic injection). A short write is
// logged and the packet dropped; char devices here are documented as
// whole-frame, so no partial-write recovery is attempted (spec.md §4.2,
// §7 ShortWrite).
func (p *StreamPair) writeTo(dst Endpoint, mu *sync.Mutex, name string, data []byte) error {
	mu.Lock()
	defer mu.Unlock()
	n, err := dst.Write(data)
	if err != nil {
		return fmt.Errorf("write to %s: %w", name, err)
	}
	if n != len(data) {
		p.logger().Warn("short write, dropping packet", "dst", name, "wrote", n, "want", len(data))
	}
	return nil
}

// InjectToA writes data directly to endpoint A, serialized against normal
// forwarding traffic. Used by synthetic sources such as the SMS tick
// worker (spec.md §5).
func (p *StreamPair) InjectToA(data []byte) error {
	p.mu.Lock()
	a := p.a
	p.mu.Unlock()
	if a == nil {
		return errors.New("proxy: endpoint A not open")
	}
	return p.writeTo(a, &p.writeMuA, p.NameA, data)
}

// InjectToB writes data directly to endpoint B.
func (p *StreamPair) InjectToB(data []byte) error {
	p.mu.Lock()
	b := p.b
	p.mu.Unlock()
	if b == nil {
		return errors.New("proxy: endpoint B not open")
	}
	return p.writeTo(b, &p.writeMuB, p.NameB, data)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// poll performs a level-triggered readiness wait on both descriptors.
func poll(fdA, fdB uintptr, timeout time.Duration) (readyA, readyB bool, err error) {
	fds := []unix.PollFd{
		{Fd: int32(fdA), Events: unix.POLLIN},
		{Fd: int32(fdB), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false, false, err
		}
		break
	}
	return fds[0].Revents&unix.POLLIN != 0, fds[1].Revents&unix.POLLIN != 0, nil
}
