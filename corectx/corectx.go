// Package corectx collects the mutable state the source kept as
// module-level globals (audio state, SMS queue, client registry, command
// history) into one object passed explicitly to every worker, with
// sharing mediated entirely through the operations the leaf packages
// expose rather than by direct field access (spec.md §9).
package corectx

import (
	"log/slog"

	"github.com/openqti-go/qtisupervisor/audio"
	"github.com/openqti-go/qtisupervisor/callaudio"
	"github.com/openqti-go/qtisupervisor/command"
	"github.com/openqti-go/qtisupervisor/qmi"
	"github.com/openqti-go/qtisupervisor/sms"
)

// Core aggregates every shared component a worker may need. Each field is
// independently synchronized by the component it names; Core itself adds
// no additional locking.
type Core struct {
	Logger *slog.Logger

	Queue      *sms.Queue
	Registry   *qmi.ClientRegistry
	CallAudio  *callaudio.State
	History    *command.History
	Interp     *command.Interpreter
	AudioBack  audio.Backend
	Sniffer    *callaudio.Sniffer
	Tracker    *qmi.Tracker
}

// New wires a fresh Core around the supplied audio backend. The command
// interpreter is built from its embedded table and is wired back to
// Queue/History so replies flow through the same SMS state machine every
// other component uses.
func New(logger *slog.Logger, backend audio.Backend) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	queue := sms.NewQueue()
	registry := qmi.NewClientRegistry()
	callAudioState := callaudio.NewState()
	history := command.NewHistory()

	interp, err := command.New()
	if err != nil {
		return nil, err
	}
	interp.Queue = queue
	interp.History = history

	sniffer := callaudio.New(callAudioState, backend, logger)
	tracker := qmi.NewTracker(registry, logger)

	return &Core{
		Logger:    logger,
		Queue:     queue,
		Registry:  registry,
		CallAudio: callAudioState,
		History:   history,
		Interp:    interp,
		AudioBack: backend,
		Sniffer:   sniffer,
		Tracker:   tracker,
	}, nil
}
