// Package callaudio implements the call-indication sniffer (C9): it
// pattern-matches QMI voice packets in the DSP->host direction and drives
// the audio back-end accordingly, without ever mutating the bytes it reads.
package callaudio

import (
	"sync"

	"github.com/openqti-go/qtisupervisor/audio"
)

// CallState is the high-level state of the active call leg.
type CallState int

const (
	CallIdle CallState = iota
	CallCircuitSwitched
	CallVoLTE
)

func (s CallState) String() string {
	switch s {
	case CallCircuitSwitched:
		return "circuit-switched"
	case CallVoLTE:
		return "volte"
	default:
		return "idle"
	}
}

// Output is the physical audio path in use, set by configuration rather
// than by the sniffer itself.
type Output int

const (
	OutputI2S Output = iota
	OutputUSB
)

// State is the CallAudioState record of spec.md §3, owned exclusively by
// this package and written only by the RMNET-proxy worker.
type State struct {
	mu     sync.Mutex
	call   CallState
	hdMode audio.Rate
	output Output
}

// NewState returns a State with the narrow-band rate and I2S output,
// matching the device's power-on defaults.
func NewState() *State {
	return &State{hdMode: audio.RateNarrow, output: OutputI2S}
}

func (s *State) CallState() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call
}

func (s *State) setCall(c CallState) {
	s.mu.Lock()
	s.call = c
	s.mu.Unlock()
}

func (s *State) HDMode() audio.Rate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hdMode
}

func (s *State) SetHDMode(r audio.Rate) {
	s.mu.Lock()
	s.hdMode = r
	s.mu.Unlock()
}

func (s *State) Output() Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func (s *State) SetOutput(o Output) {
	s.mu.Lock()
	s.output = o
	s.mu.Unlock()
}

// CurrentMode implements command.AudioStatus, reporting the call leg only;
// the HD-audio rate is not part of the returned string.
func (s *State) CurrentMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call.String()
}
