package corectx

import (
	"testing"

	"github.com/openqti-go/qtisupervisor/audio"
)

type noopBackend struct{}

func (noopBackend) Start(audio.Mode) error  { return nil }
func (noopBackend) Stop() error             { return nil }
func (noopBackend) SetRate(audio.Rate) error { return nil }

func TestNew_WiresComponents(t *testing.T) {
	c, err := New(nil, noopBackend{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Queue == nil || c.Registry == nil || c.CallAudio == nil || c.History == nil || c.Interp == nil {
		t.Fatal("expected every component to be wired")
	}
	if c.Interp.Queue != c.Queue {
		t.Fatal("interpreter must share the same queue as the core")
	}
	if c.Interp.History != c.History {
		t.Fatal("interpreter must share the same history as the core")
	}
}
