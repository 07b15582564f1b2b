package qmi

import (
	"testing"
	"time"
)

func TestClientRegistry_DedupAndOrder(t *testing.T) {
	r := NewClientRegistry()
	now := time.Now()
	r.Register(0x01, now)
	r.Register(0x02, now.Add(time.Second))
	r.Register(0x01, now.Add(2*time.Second)) // duplicate, ignored

	if r.Count() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Count())
	}
	entries := r.Entries()
	if entries[0].ServiceID != 0x01 || entries[1].ServiceID != 0x02 {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestClientRegistry_RefusesReservedNodeID(t *testing.T) {
	r := NewClientRegistry()
	r.Register(ReservedNodeID, time.Now())
	if r.Count() != 0 {
		t.Fatal("reserved node id must never be tracked")
	}
}

func TestClientRegistry_Release(t *testing.T) {
	r := NewClientRegistry()
	now := time.Now()
	r.Register(0x01, now)
	r.Register(0x02, now)
	r.Release(0x01)
	if r.Count() != 1 {
		t.Fatalf("expected 1 entry after release, got %d", r.Count())
	}
	if r.Entries()[0].ServiceID != 0x02 {
		t.Fatal("wrong entry survived release")
	}
}

// S6: 33 distinct client-register packets push the registry past the cap
// and NeedsReset must report true.
func TestClientRegistry_S6_Overflow(t *testing.T) {
	r := NewClientRegistry()
	now := time.Now()
	for i := byte(0x01); i <= 0x21; i++ { // 0x01..0x21 inclusive = 33 entries
		r.Register(i, now)
	}
	if r.Count() != 33 {
		t.Fatalf("expected 33 tracked entries, got %d", r.Count())
	}
	if !r.NeedsReset(now) {
		t.Fatal("expected NeedsReset after exceeding the 32-entry cap")
	}
}

func TestClientRegistry_NeedsReset_Age(t *testing.T) {
	r := NewClientRegistry()
	start := time.Now()
	r.Register(0x01, start)

	if r.NeedsReset(start.Add(ForceReleaseAge - time.Second)) {
		t.Fatal("must not need reset before the age threshold")
	}
	if !r.NeedsReset(start.Add(ForceReleaseAge)) {
		t.Fatal("must need reset once the age threshold elapses")
	}
}

func TestClientRegistry_DrainLIFO(t *testing.T) {
	r := NewClientRegistry()
	now := time.Now()
	r.Register(0x01, now)
	r.Register(0x02, now)
	r.Register(0x03, now)

	drained := r.DrainLIFO()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained entries, got %d", len(drained))
	}
	if drained[0].ServiceID != 0x03 || drained[2].ServiceID != 0x01 {
		t.Fatalf("expected LIFO order, got %+v", drained)
	}
	if r.Count() != 0 {
		t.Fatal("registry must be empty after drain")
	}
}
