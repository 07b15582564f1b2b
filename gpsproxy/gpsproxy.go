// Package gpsproxy wires the generic proxy.StreamPair over the GPS NMEA
// character devices (C3). No hooks inspect or alter the GPS stream: the
// proxy only needs to keep the pair alive and forward bytes untouched,
// which proxy.StreamPair already provides when its hooks are left nil.
package gpsproxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/openqti-go/qtisupervisor/devicepath"
	"github.com/openqti-go/qtisupervisor/proxy"
)

// Config names the two device paths the GPS proxy bridges.
type Config struct {
	DSPPath string
	USBPath string
	Logger  *slog.Logger
}

// Worker wraps the GPS StreamPair with a dirty-reconnect counter, so
// "gps stats" (command table id 6) has something to report, mirroring
// rmnetproxy.Worker.Snapshot.
type Worker struct {
	Pair *proxy.StreamPair

	dirtyReconnects atomic.Int64
}

// New builds the GPS passthrough worker. Reopen is handled by
// proxy.StreamPair.Run itself on every terminate, per spec.md §4.3.
func New(cfg Config) *Worker {
	w := &Worker{}
	w.Pair = &proxy.StreamPair{
		NameA:  "gps-dsp",
		NameB:  "gps-usb",
		Logger: cfg.Logger,
		OpenA: func() (proxy.Endpoint, error) {
			return devicepath.Open("gps-dsp", cfg.DSPPath)
		},
		OpenB: func() (proxy.Endpoint, error) {
			return devicepath.Open("gps-usb", cfg.USBPath)
		},
		OnTerminate: func(error) {
			w.dirtyReconnects.Add(1)
		},
	}
	return w
}

// Run starts the GPS proxy and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.Pair.Run(ctx)
}

// Snapshot implements command.Stats.
func (w *Worker) Snapshot() string {
	return fmt.Sprintf("gps: %d dirty reconnects", w.dirtyReconnects.Load())
}

// Run starts the GPS proxy and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return New(cfg).Run(ctx)
}
