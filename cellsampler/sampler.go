package cellsampler

import (
	"context"
	"fmt"
	"sync"
)

// AT commands issued against the engineering channel, named after their
// reverse-engineered Quectel originals.
const (
	cmdGetServingCell = `AT+QENG="servingcell"`
	cmdGetCommonInd   = "AT+CIND?"
)

// Sampler owns the AT session and the last-known network state, serving
// both the "signal report" command reply and any other component that
// wants a cheap read of current signal/service status (spec.md §4.1's
// rationale: cell state informs call-audio routing decisions alongside
// the QMI call indication).
type Sampler struct {
	session *Session

	mu      sync.Mutex
	report  Report
	indic   Indicators
}

// NewSampler wraps an already-open Session.
func NewSampler(session *Session) *Sampler {
	return &Sampler{session: session}
}

// Refresh issues both engineering-mode queries and stores their decoded
// results, mirroring update_network_data's read-CIND-then-read-serving-cell
// order.
func (s *Sampler) Refresh(ctx context.Context) error {
	indResp, err := s.session.Exec(ctx, cmdGetCommonInd)
	if err != nil {
		return fmt.Errorf("read common indicators: %w", err)
	}
	cellResp, err := s.session.Exec(ctx, cmdGetServingCell)
	if err != nil {
		return fmt.Errorf("read serving cell: %w", err)
	}

	s.mu.Lock()
	if len(indResp) > 18 {
		s.indic = ParseIndicators(indResp)
	}
	if len(cellResp) > 18 {
		s.report = ParseReport(cellResp)
	}
	s.mu.Unlock()
	return nil
}

// Current returns the last-sampled report and indicators without
// touching the AT channel.
func (s *Sampler) Current() (Report, Indicators) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.indic
}

// Sample implements command.CellSampler: a one-line human-readable
// summary for the "signal report" CLI reply.
func (s *Sampler) Sample() (string, error) {
	report, indic := s.Current()
	switch report.NetType {
	case NetGSM:
		return fmt.Sprintf("GSM mcc=%d mnc=%d cell=%s rxlev=%d signal=%d%%",
			report.MCC, report.MNC, report.CellID, report.GSM.RxLev, indic.SignalPercent()), nil
	case NetWCDMA:
		return fmt.Sprintf("WCDMA mcc=%d mnc=%d cell=%s rscp=%d signal=%d%%",
			report.MCC, report.MNC, report.CellID, report.WCDMA.RSCP, indic.SignalPercent()), nil
	case NetLTE:
		return fmt.Sprintf("LTE mcc=%d mnc=%d cell=%s rsrp=%d signal=%d%%",
			report.MCC, report.MNC, report.CellID, report.LTE.RSRP, indic.SignalPercent()), nil
	default:
		return "no service", nil
	}
}
