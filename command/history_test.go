package command

import "testing"

func TestHistory_MatchCount(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.Add(7)
	}
	if got := h.MatchCount(7); got != 5 {
		t.Fatalf("MatchCount = %d, want 5", got)
	}
	if got := h.MatchCount(9); got != 0 {
		t.Fatalf("MatchCount(9) = %d, want 0", got)
	}
}

func TestHistory_WindowLimitedToLastFive(t *testing.T) {
	h := NewHistory()
	h.Add(7)
	for i := 0; i < 5; i++ {
		h.Add(1)
	}
	if got := h.MatchCount(7); got != 0 {
		t.Fatalf("MatchCount = %d, want 0 (outside the 5-entry window)", got)
	}
}

func TestHistory_WrapsAtCapacity(t *testing.T) {
	h := NewHistory()
	for i := 0; i < HistorySize+10; i++ {
		h.Add(i % 3)
	}
	if h.size != HistorySize {
		t.Fatalf("size = %d, want %d", h.size, HistorySize)
	}
}

func TestHistory_Recent_OldestFirst(t *testing.T) {
	h := NewHistory()
	h.Add(1)
	h.Add(2)
	h.Add(3)
	got := h.Recent(2)
	want := []int{2, 3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Recent(2) = %v, want %v", got, want)
	}
}

func TestHistory_Recent_CapsAtActualSize(t *testing.T) {
	h := NewHistory()
	h.Add(5)
	if got := h.Recent(10); len(got) != 1 || got[0] != 5 {
		t.Fatalf("Recent(10) = %v, want a single entry [5]", got)
	}
}
