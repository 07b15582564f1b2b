package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openqti-go/qtisupervisor/corectx"
)

// statusServer exposes a read-only debug endpoint over the supervisor's
// shared Core, the idiomatic replacement for the source's "dump state to
// the log on SIGUSR1" behaviour: an operator can poll it instead of
// scraping logs.
type statusServer struct {
	logger *slog.Logger
	core   *corectx.Core
}

func (s *statusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.ServeHTTP(w, r)
}

type statusResponse struct {
	RMNET       string `json:"rmnet_stats,omitempty"`
	GPS         string `json:"gps_stats,omitempty"`
	QueueLength int    `json:"sms_queue_length"`
	AudioMode   string `json:"audio_mode,omitempty"`
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		QueueLength: s.core.Queue.Len(),
	}
	if s.core.Interp.RMNET != nil {
		resp.RMNET = s.core.Interp.RMNET.Snapshot()
	}
	if s.core.Interp.GPS != nil {
		resp.GPS = s.core.Interp.GPS.Snapshot()
	}
	if s.core.Interp.Audio != nil {
		resp.AudioMode = s.core.Interp.Audio.CurrentMode()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode status response", "error", err)
	}
}
