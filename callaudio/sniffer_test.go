package callaudio

import (
	"testing"

	"github.com/openqti-go/qtisupervisor/audio"
)

type fakeBackend struct {
	startCalls []audio.Mode
	stopCalls  int
}

func (f *fakeBackend) Start(mode audio.Mode) error {
	f.startCalls = append(f.startCalls, mode)
	return nil
}

func (f *fakeBackend) Stop() error {
	f.stopCalls++
	return nil
}

func (f *fakeBackend) SetRate(audio.Rate) error { return nil }

func callIndicationPacket(state, direction, callType byte) []byte {
	buf := make([]byte, 128)
	buf[0] = 0x01
	buf[3] = 0x80
	buf[4] = 0x09
	buf[6] = 0x04
	buf[9] = 0x2E
	buf[18] = state
	buf[20] = direction
	buf[21] = callType
	return buf
}

// S5: originating VoLTE call indication invokes audio.start(VoLTE) exactly
// once and forwards the buffer unchanged.
func TestSniffer_S5_VoLTEOriginating(t *testing.T) {
	state := NewState()
	backend := &fakeBackend{}
	s := New(state, backend, nil)

	buf := callIndicationPacket(0x02, 0x01, 0x01)
	orig := append([]byte(nil), buf...)

	out := s.Hook(buf)

	if len(backend.startCalls) != 1 {
		t.Fatalf("expected exactly 1 Start call, got %d", len(backend.startCalls))
	}
	if backend.startCalls[0] != audio.ModeVoLTE {
		t.Fatalf("expected VoLTE mode, got %v", backend.startCalls[0])
	}
	if backend.stopCalls != 0 {
		t.Fatalf("expected no Stop calls, got %d", backend.stopCalls)
	}
	if string(out) != string(orig) {
		t.Fatal("sniffer must not mutate the buffer")
	}
	if state.CallState() != CallVoLTE {
		t.Fatalf("expected CallVoLTE state, got %v", state.CallState())
	}
}

func TestSniffer_CircuitSwitchedHangup(t *testing.T) {
	state := NewState()
	state.setCall(CallCircuitSwitched)
	backend := &fakeBackend{}
	s := New(state, backend, nil)

	buf := callIndicationPacket(0x09, 0x00, 0x00)
	s.Hook(buf)

	if backend.stopCalls != 1 {
		t.Fatalf("expected exactly 1 Stop call, got %d", backend.stopCalls)
	}
	if state.CallState() != CallIdle {
		t.Fatalf("expected idle state after hangup, got %v", state.CallState())
	}
}

func TestSniffer_IgnoresNonIndication(t *testing.T) {
	state := NewState()
	backend := &fakeBackend{}
	s := New(state, backend, nil)

	buf := make([]byte, 128)
	buf[0] = 0x01 // only the first matching byte; rest don't match
	out := s.Hook(buf)

	if len(backend.startCalls) != 0 || backend.stopCalls != 0 {
		t.Fatal("non-matching packet must not trigger audio actions")
	}
	if len(out) != len(buf) {
		t.Fatal("buffer length must be preserved")
	}
}

func TestSniffer_TooShortIsIgnored(t *testing.T) {
	state := NewState()
	s := New(state, nil, nil)

	buf := callIndicationPacket(0x02, 0x01, 0x01)[:20]
	out := s.Hook(buf)

	if len(out) != 20 {
		t.Fatal("short buffer must be forwarded unchanged")
	}
	if state.CallState() != CallIdle {
		t.Fatal("short buffer must not affect call state")
	}
}
