// Package rmnetproxy wires the generic proxy.StreamPair over the
// RMNET/QMI control endpoints (C4): client-count tracking in both
// directions, call-indication sniffing on the DSP->host leg, and SMS
// interception ahead of forwarding when the traffic belongs to the WMS
// service or the SMS queue is non-empty.
package rmnetproxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openqti-go/qtisupervisor/corectx"
	"github.com/openqti-go/qtisupervisor/devicepath"
	"github.com/openqti-go/qtisupervisor/proxy"
	"github.com/openqti-go/qtisupervisor/qmi"
	"github.com/openqti-go/qtisupervisor/sms"
)

// Config names the two device paths the RMNET proxy bridges.
type Config struct {
	DSPPath string
	USBPath string
	Core    *corectx.Core
	Logger  *slog.Logger
}

// Worker owns the RMNET StreamPair and the counters the command
// interpreter's "rmnet stats" surfaces.
type Worker struct {
	Pair *proxy.StreamPair
	core *corectx.Core

	dirtyReconnects atomic.Int64
	forceCloses     atomic.Int64
}

// New builds the RMNET proxy, wiring the client tracker, the
// call-indication sniffer, and the SMS interception hook.
func New(cfg Config) *Worker {
	w := &Worker{core: cfg.Core}

	w.Pair = &proxy.StreamPair{
		NameA:    "rmnet-dsp",
		NameB:    "rmnet-usb",
		Logger:   cfg.Logger,
		HookAtoB: w.dspToHost,
		HookBtoA: w.hostToDSP,
		OnTerminate: func(err error) {
			w.dirtyReconnects.Add(1)
		},
		OpenA: func() (proxy.Endpoint, error) {
			return devicepath.Open("rmnet-dsp", cfg.DSPPath)
		},
		OpenB: func() (proxy.Endpoint, error) {
			return devicepath.Open("rmnet-usb", cfg.USBPath)
		},
	}
	return w
}

// Run starts the RMNET proxy and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.Pair.Run(ctx)
}

// dspToHost is the DSP->host hook chain: handle_call_pkt (the
// call-indication sniffer), then track_client_count, then pass
// (spec.md §4.4). Neither stage ever drops a packet.
func (w *Worker) dspToHost(buf []byte) ([]byte, bool) {
	out := w.core.Sniffer.Hook(buf)
	out = w.core.Tracker.TrackClientCount(out)
	return out, false
}

// hostToDSP is the host->DSP hook chain: track_client_count, then the
// SMS interception hook when the frame belongs to the WMS service or the
// queue has work outstanding (spec.md §4.4). A frame that resolves to a
// state transition on the synthetic SMS queue is absorbed: the DSP never
// needs to see host traffic about a message it never sent.
func (w *Worker) hostToDSP(buf []byte) ([]byte, bool) {
	out := w.core.Tracker.TrackClientCount(buf)

	if w.core.Tracker.NeedsReset() {
		w.forceCloseLocked()
	}

	if !w.shouldIntercept(out) {
		return out, false
	}

	f, ok := qmi.Parse(out)
	if !ok || f.ServiceID != sms.ServiceWMS {
		return out, false
	}

	now := time.Now()
	switch f.MessageID {
	case sms.MsgReadMessage:
		if err := w.core.Queue.HostRead(f.TransactionID, now); err == nil {
			return nil, true
		}
	case sms.MsgDelete:
		if err := w.core.Queue.HostDelete(f.TransactionID, now); err == nil {
			return nil, true
		}
	}
	return out, false
}

func (w *Worker) shouldIntercept(buf []byte) bool {
	f, ok := qmi.Parse(buf)
	if ok && f.ServiceID == sms.ServiceWMS {
		return true
	}
	return w.core.Queue.NotifyPending()
}

func (w *Worker) forceCloseLocked() {
	sink := injectToDSP{w.Pair}
	if _, err := w.core.Tracker.ForceClose(sink); err == nil {
		w.forceCloses.Add(1)
	}
}

// injectToDSP adapts StreamPair.InjectToA to io.Writer so ForceClose's
// one-frame-per-Write synthesized release frames reach the DSP-facing
// descriptor directly, bypassing the hook's own forwarding decision.
type injectToDSP struct{ pair *proxy.StreamPair }

func (w injectToDSP) Write(p []byte) (int, error) {
	if err := w.pair.InjectToA(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Stats snapshot for the "rmnet stats" command (C8).
func (w *Worker) Snapshot() string {
	return fmt.Sprintf("rmnet: %d dirty reconnects, %d force-closes",
		w.dirtyReconnects.Load(), w.forceCloses.Load())
}

// RunSMSTick periodically advances the SMS queue's timeouts (W-SMS-Tick,
// spec.md §5) and writes any synthesized artifact to the host-facing
// descriptor.
func RunSMSTick(ctx context.Context, pair *proxy.StreamPair, queue *sms.Queue, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eff := queue.Tick(time.Now())
			writeEffect(pair, queue, eff)
		}
	}
}

func writeEffect(pair *proxy.StreamPair, queue *sms.Queue, eff sms.Effect) {
	switch eff.Kind {
	case sms.EffectNotification:
		pair.InjectToB(sms.BuildNotification(eff.Message))
	case sms.EffectReadPDU:
		pair.InjectToB(sms.BuildReadPDU(eff.Message, queue.LastHostTransactionID(), time.Now()))
	case sms.EffectDeleteAck:
		for _, frame := range sms.BuildDeleteAcks(queue.LastHostTransactionID(), eff.AckCount) {
			pair.InjectToB(frame)
		}
	}
}
