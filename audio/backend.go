// Package audio defines the contract for the ALSA mixer/PCM back-end that
// sits outside this module's scope (spec.md §1, "Out of scope") and
// provides a sysfs-driven rate switcher, the one piece of the audio path
// this module is responsible for driving directly.
package audio

import (
	"fmt"
	"os"
)

// Mode identifies the call leg driving the audio path.
type Mode int

const (
	ModeCircuitSwitched Mode = iota
	ModeVoLTE
)

func (m Mode) String() string {
	switch m {
	case ModeCircuitSwitched:
		return "circuit-switched"
	case ModeVoLTE:
		return "volte"
	default:
		return "unknown"
	}
}

// Rate is one of the three HD-audio sampling rates the back-end supports.
type Rate int

const (
	RateNarrow Rate = 8000
	RateWide   Rate = 16000
	RateUltra  Rate = 48000
)

// Backend is the external audio mixer/PCM bring-up contract. Implementations
// are expected to be single-threaded: all calls originate from the RMNET
// proxy worker (spec.md §5).
type Backend interface {
	// Start brings up the audio path for the given call mode.
	Start(mode Mode) error
	// Stop tears down the audio path.
	Stop() error
	// SetRate switches the sampling rate used by the active path.
	SetRate(r Rate) error
}

// SysfsRates maps each Rate to the sysfs file written with its decimal ASCII
// value (spec.md §6, "Sysfs writes used by the audio rate switcher").
type SysfsRates struct {
	Narrow string
	Wide   string
	Ultra  string
}

// SysfsBackend drives the rate switch through sysfs and leaves call-mode
// bring-up/teardown to an injected delegate (the real mixer control is out
// of scope; this only owns the rate file writes the spec assigns to us).
type SysfsBackend struct {
	Rates   SysfsRates
	Start_  func(Mode) error
	Stop_   func() error
	current Rate
}

func NewSysfsBackend(rates SysfsRates) *SysfsBackend {
	return &SysfsBackend{Rates: rates}
}

func (b *SysfsBackend) Start(mode Mode) error {
	if b.Start_ != nil {
		return b.Start_(mode)
	}
	return nil
}

func (b *SysfsBackend) Stop() error {
	if b.Stop_ != nil {
		return b.Stop_()
	}
	return nil
}

func (b *SysfsBackend) SetRate(r Rate) error {
	path := b.pathFor(r)
	if path == "" {
		return fmt.Errorf("audio: no sysfs path configured for rate %d", r)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d", r)), 0644); err != nil {
		return fmt.Errorf("audio: write rate %d to %s: %w", r, path, err)
	}
	b.current = r
	return nil
}

func (b *SysfsBackend) pathFor(r Rate) string {
	switch r {
	case RateNarrow:
		return b.Rates.Narrow
	case RateWide:
		return b.Rates.Wide
	case RateUltra:
		return b.Rates.Ultra
	default:
		return ""
	}
}

// Current returns the last rate successfully written.
func (b *SysfsBackend) Current() Rate {
	return b.current
}
