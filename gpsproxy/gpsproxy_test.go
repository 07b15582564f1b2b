package gpsproxy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_WiresBothEndpoints(t *testing.T) {
	dir := t.TempDir()
	dspPath := filepath.Join(dir, "gps-dsp")
	usbPath := filepath.Join(dir, "gps-usb")
	if err := os.WriteFile(dspPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(usbPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	w := New(Config{DSPPath: dspPath, USBPath: usbPath})
	pair := w.Pair
	if pair.NameA != "gps-dsp" || pair.NameB != "gps-usb" {
		t.Fatalf("unexpected names: %s %s", pair.NameA, pair.NameB)
	}
	if pair.HookAtoB != nil || pair.HookBtoA != nil {
		t.Fatal("gps proxy must not install hooks, the stream passes through untouched")
	}

	a, err := pair.OpenA()
	if err != nil {
		t.Fatalf("OpenA: %v", err)
	}
	defer a.Close()
	b, err := pair.OpenB()
	if err != nil {
		t.Fatalf("OpenB: %v", err)
	}
	defer b.Close()
}

func TestWorker_Snapshot_CountsDirtyReconnects(t *testing.T) {
	w := New(Config{DSPPath: "/nonexistent-a", USBPath: "/nonexistent-b"})
	if got := w.Snapshot(); got != "gps: 0 dirty reconnects" {
		t.Fatalf("Snapshot() = %q, want zero reconnects initially", got)
	}
	w.Pair.OnTerminate(nil)
	if got := w.Snapshot(); got != "gps: 1 dirty reconnects" {
		t.Fatalf("Snapshot() = %q, want 1 dirty reconnect", got)
	}
}
