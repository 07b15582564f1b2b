package qmi

import (
	"bytes"
	"testing"
	"time"
)

func registerFrame(service byte) []byte {
	f := Frame{
		ServiceID:     ServiceCTL,
		MessageID:     MsgClientRegister,
		TransactionID: 1,
		TLVs:          []TLV{{Type: 0x01, Value: []byte{service}}},
	}
	// The frame's own ServiceID field doubles as the tracked service per
	// track_client_count's reading of the registering client's service.
	f.ServiceID = service
	return f.Marshal()
}

func releaseFrameBytes(service byte) []byte {
	f := Frame{ServiceID: service, MessageID: MsgClientRelease, TransactionID: 1}
	return f.Marshal()
}

func TestTracker_RegisterAndRelease(t *testing.T) {
	reg := NewClientRegistry()
	tr := NewTracker(reg, nil)
	tr.Now = func() time.Time { return time.Unix(1000, 0) }

	tr.TrackClientCount(registerFrame(0x01))
	tr.TrackClientCount(registerFrame(0x02))
	if reg.Count() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", reg.Count())
	}

	tr.TrackClientCount(releaseFrameBytes(0x01))
	if reg.Count() != 1 {
		t.Fatalf("expected 1 tracked client after release, got %d", reg.Count())
	}
}

func TestTracker_BadFrameForwardedUnmodified(t *testing.T) {
	reg := NewClientRegistry()
	tr := NewTracker(reg, nil)
	junk := []byte{0xde, 0xad, 0xbe, 0xef}
	out := tr.TrackClientCount(junk)
	if !bytes.Equal(out, junk) {
		t.Fatal("bad frame must be forwarded unmodified")
	}
	if reg.Count() != 0 {
		t.Fatal("bad frame must not affect the registry")
	}
}

// S6: after 33 client registrations, NeedsReset is true and ForceClose
// emits at least 33*6 release frames.
func TestTracker_S6_ForceCloseAfterOverflow(t *testing.T) {
	reg := NewClientRegistry()
	tr := NewTracker(reg, nil)
	fixedNow := time.Unix(2000, 0)
	tr.Now = func() time.Time { return fixedNow }

	for i := byte(0x01); i <= 0x21; i++ {
		tr.TrackClientCount(registerFrame(i))
	}

	if !tr.NeedsReset() {
		t.Fatal("expected NeedsReset after 33 registrations")
	}

	var buf bytes.Buffer
	n, err := tr.ForceClose(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n < 33*6 {
		t.Fatalf("expected at least 198 release frames, got %d", n)
	}
	if reg.Count() != 0 {
		t.Fatal("registry must be drained after force-close")
	}
}
