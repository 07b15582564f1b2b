package proxy

import (
	"context"
	"os"
	"testing"
	"time"
)

// pipeEndpoint adapts an *os.File pair to the Endpoint interface for tests,
// since the real devicepath.Endpoint always opens a named character device.
type pipeEndpoint struct {
	name string
	r    *os.File
	w    *os.File
}

func (p *pipeEndpoint) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEndpoint) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeEndpoint) Close() error {
	p.r.Close()
	p.w.Close()
	return nil
}
func (p *pipeEndpoint) Fd() uintptr  { return p.r.Fd() }
func (p *pipeEndpoint) String() string { return p.name }

// wiredPair builds two pipeEndpoints such that writes to "host" are
// readable from "dsp" and vice versa, simulating a pair of character
// devices connected end to end.
func wiredPair(t *testing.T) (host, dsp *pipeEndpoint) {
	t.Helper()
	hostR, dspW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	dspR, hostW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	return &pipeEndpoint{name: "host", r: hostR, w: hostW},
		&pipeEndpoint{name: "dsp", r: dspR, w: dspW}
}

// TestStreamPair_ForwardsBothDirections exercises property 7 (liveness):
// bytes written into one side appear, unmodified, on the other.
func TestStreamPair_ForwardsBothDirections(t *testing.T) {
	host, dsp := wiredPair(t)

	opened := 0
	p := &StreamPair{
		NameA: "host",
		NameB: "dsp",
		OpenA: func() (Endpoint, error) {
			opened++
			return host, nil
		},
		OpenB: func() (Endpoint, error) {
			return dsp, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(20 * time.Millisecond) // let Run open and start polling

	msg := []byte("hello dsp")
	if _, err := host.w.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	dsp.r.SetReadDeadline(time.Now().Add(time.Second))
	n, err := dsp.r.Read(buf)
	if err != nil {
		t.Fatalf("dsp side did not receive forwarded bytes: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

// TestStreamPair_HookDropAbsorbsPacket verifies a hook returning drop=true
// prevents the packet from reaching the peer.
func TestStreamPair_HookDropAbsorbsPacket(t *testing.T) {
	host, dsp := wiredPair(t)

	dropped := make(chan []byte, 1)
	p := &StreamPair{
		NameA: "host",
		NameB: "dsp",
		OpenA: func() (Endpoint, error) { return host, nil },
		OpenB: func() (Endpoint, error) { return dsp, nil },
		HookAtoB: func(buf []byte) ([]byte, bool) {
			cp := append([]byte(nil), buf...)
			dropped <- cp
			return nil, true
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	host.w.Write([]byte("absorbed"))

	select {
	case got := <-dropped:
		if string(got) != "absorbed" {
			t.Fatalf("hook saw %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("hook was never invoked")
	}

	dsp.r.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 16)
	if _, err := dsp.r.Read(buf); err == nil {
		t.Fatal("dropped packet must not reach the peer")
	}
}

// TestStreamPair_InjectToA writes synthetic data directly to endpoint A
// without going through the forwarding loop, as the SMS tick worker does.
func TestStreamPair_InjectToA(t *testing.T) {
	host, dsp := wiredPair(t)

	p := &StreamPair{
		NameA: "host",
		NameB: "dsp",
		OpenA: func() (Endpoint, error) { return host, nil },
		OpenB: func() (Endpoint, error) { return dsp, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	if err := p.InjectToA([]byte("notify")); err != nil {
		t.Fatalf("InjectToA: %v", err)
	}

	buf := make([]byte, 16)
	host.r.SetReadDeadline(time.Now().Add(time.Second))
	n, err := host.r.Read(buf)
	if err != nil {
		t.Fatalf("host side did not receive injected bytes: %v", err)
	}
	if string(buf[:n]) != "notify" {
		t.Fatalf("got %q", buf[:n])
	}
}

// TestStreamPair_UsbGateBlocksIO confirms the suspend gate prevents reads
// from being serviced while UsbReady reports false.
func TestStreamPair_UsbGateBlocksIO(t *testing.T) {
	host, dsp := wiredPair(t)

	var gateCalls int
	ready := false
	p := &StreamPair{
		NameA:        "host",
		NameB:        "dsp",
		OpenA:        func() (Endpoint, error) { return host, nil },
		OpenB:        func() (Endpoint, error) { return dsp, nil },
		UsbReady:     func() bool { gateCalls++; return ready },
		SuspendSleep: func() { time.Sleep(5 * time.Millisecond) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	host.w.Write([]byte("blocked"))
	dsp.r.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 16)
	if _, err := dsp.r.Read(buf); err == nil {
		t.Fatal("expected no forwarding while the usb gate is closed")
	}
	if gateCalls == 0 {
		t.Fatal("usb gate was never consulted")
	}

	ready = true
	dsp.r.SetReadDeadline(time.Now().Add(time.Second))
	n, err := dsp.r.Read(buf)
	if err != nil {
		t.Fatalf("expected forwarding to resume once the gate opens: %v", err)
	}
	if string(buf[:n]) != "blocked" {
		t.Fatalf("got %q", buf[:n])
	}
}
