package callaudio

import (
	"log/slog"

	"github.com/openqti-go/qtisupervisor/audio"
)

// indicationAction classifies what the call-indication's state byte asks
// the audio back-end to do.
type indicationAction int

const (
	actionIgnore indicationAction = iota
	actionStart
	actionHold
	actionEnd
)

// callState byte values (spec.md §4.9 "state=byte18"). These follow the
// ordinal grouping of the originating voice-indication packet: the first
// five values are phases of call setup/in-progress and start audio, the
// next two are hold states, and the last two tear it down.
const (
	stateAttemptOrPreparing byte = 0x00
	stateOriginating        byte = 0x02
	stateRinging            byte = 0x03
	stateEstablished        byte = 0x04
	stateUnknown            byte = 0x05
	stateOnHold             byte = 0x06
	stateWaiting            byte = 0x07
	stateDisconnecting      byte = 0x08
	stateHangup             byte = 0x09
)

func classifyState(b byte) indicationAction {
	switch b {
	case stateAttemptOrPreparing, stateOriginating, stateRinging, stateEstablished, stateUnknown, 0x01:
		return actionStart
	case stateOnHold, stateWaiting:
		return actionHold
	case stateDisconnecting, stateHangup:
		return actionEnd
	default:
		return actionIgnore
	}
}

// callType byte values (byte21). 0x01 identifies VoLTE; every other value
// is a circuit-switched variant (GSM, UMTS, unknown network, ...).
const typeVoLTE byte = 0x01

func classifyType(b byte) CallState {
	if b == typeVoLTE {
		return CallVoLTE
	}
	return CallCircuitSwitched
}

func modeFor(c CallState) audio.Mode {
	if c == CallVoLTE {
		return audio.ModeVoLTE
	}
	return audio.ModeCircuitSwitched
}

// minPacketSize is the length a DSP->host buffer must exceed for the
// sniffer to consider it (spec.md §4.9: size > 25); a buffer of this
// length or shorter can't carry a call-indication and is forwarded
// untouched.
const minPacketSize = 25

// Sniffer matches voice-indication packets in the DSP->host direction and
// drives the audio back-end. It never mutates the buffer it is given: the
// hook's contract is read-only inspection (spec.md §8 property 8).
type Sniffer struct {
	State   *State
	Backend audio.Backend
	Logger  *slog.Logger
}

func New(state *State, backend audio.Backend, logger *slog.Logger) *Sniffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sniffer{State: state, Backend: backend, Logger: logger}
}

// Hook is the proxy pre-forward hook for the DSP->host direction
// (spec.md §4.4). It always returns the buffer unchanged for forwarding;
// the sniffer's job is side effects, never packet shaping.
func (s *Sniffer) Hook(buf []byte) []byte {
	if !isCallIndication(buf) {
		return buf
	}

	state := buf[18]
	direction := buf[20]
	callType := buf[21]

	action := classifyState(state)
	callState := classifyType(callType)

	s.Logger.Debug("call indication",
		"state", state, "direction", direction, "type", callType, "action", action)

	switch action {
	case actionStart:
		s.State.setCall(callState)
		if s.Backend != nil {
			if err := s.Backend.Start(modeFor(callState)); err != nil {
				s.Logger.Error("audio start failed", "mode", modeFor(callState), "error", err)
			}
		}
	case actionEnd:
		s.State.setCall(CallIdle)
		if s.Backend != nil {
			if err := s.Backend.Stop(); err != nil {
				s.Logger.Error("audio stop failed", "error", err)
			}
		}
	case actionHold:
		// Audio path stays up; nothing to do but note the transition.
	case actionIgnore:
	}

	return buf
}

// isCallIndication implements the byte-pattern match of spec.md §4.9.
func isCallIndication(buf []byte) bool {
	if len(buf) <= minPacketSize {
		return false
	}
	return buf[0] == 0x01 &&
		buf[3] == 0x80 &&
		buf[4] == 0x09 &&
		buf[6] == 0x04 &&
		buf[9] == 0x2E
}
