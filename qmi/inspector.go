package qmi

import (
	"io"
	"log/slog"
	"time"
)

// ServiceCTL is the QMI control service used for client register/release.
const ServiceCTL = 0x00

// Tracker implements the host-facing half of C5: it watches
// QMI_CLIENT_REGISTER/QMI_CLIENT_RELEASE traffic to maintain the
// ClientRegistry, and can force-release every tracked client when the host
// is considered gone.
type Tracker struct {
	Registry *ClientRegistry
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewTracker(registry *ClientRegistry, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{Registry: registry, Logger: logger, Now: time.Now}
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// TrackClientCount is the client-tracking hook, run on frames in both
// proxy directions (spec.md §4.4). A frame
// that fails to parse (BadFrame) is forwarded unmodified, never dropped.
func (t *Tracker) TrackClientCount(buf []byte) []byte {
	f, ok := Parse(buf)
	if !ok {
		return buf
	}
	switch f.MessageID {
	case MsgClientRegister:
		t.Registry.Register(f.ServiceID, t.now())
		t.Logger.Debug("qmi client registered", "service", f.ServiceID)
	case MsgClientRelease:
		t.Registry.Release(f.ServiceID)
		t.Logger.Debug("qmi client released", "service", f.ServiceID)
	}
	return buf
}

// NeedsReset reports whether the registry has become stale or oversized
// and the host should be considered gone (spec.md §4.5, §7 HostAwol).
func (t *Tracker) NeedsReset() bool {
	return t.Registry.NeedsReset(t.now())
}

// releaseClientFrame synthesizes a QMI_CLIENT_RELEASE request targeting
// service at the given instance, addressed to the control service the way
// the real QMI_CTL release-client-id request is framed: a single TLV
// carrying {service, client_id}.
func releaseClientFrame(service, instance byte, txn uint16) Frame {
	return Frame{
		ServiceID:     ServiceCTL,
		ClientID:      instance,
		TransactionID: txn,
		MessageID:     MsgClientRelease,
		TLVs: []TLV{
			{Type: 0x01, Value: []byte{service, instance}},
		},
	}
}

// maxInstance is the highest instance swept per tracked service
// (spec.md §4.5: "instances 0..5").
const maxInstance = 5

// defensiveServiceSweep is the range of services swept defensively when a
// force-close is triggered, covering every possible service id byte
// (spec.md §4.5: "services 0..255").
const defensiveServiceSweep = 255

// ForceClose drains the registry and writes synthesized client-release
// frames for every tracked service across instances 0..5, then performs
// the defensive sweep across every service id at instance 0: the source
// cannot know from this side of the proxy whether the DSP's own client
// table still has leftover registrations, so the defensive pass always
// runs once a reset is triggered rather than being conditioned on state
// this module has no visibility into.
func (t *Tracker) ForceClose(w io.Writer) (framesWritten int, err error) {
	entries := t.Registry.DrainLIFO()
	txn := uint16(1)
	for _, e := range entries {
		for instance := byte(0); instance <= maxInstance; instance++ {
			frame := releaseClientFrame(e.ServiceID, instance, txn)
			if _, werr := w.Write(frame.Marshal()); werr != nil {
				return framesWritten, werr
			}
			framesWritten++
			txn++
		}
	}

	for svc := 0; svc <= defensiveServiceSweep; svc++ {
		frame := releaseClientFrame(byte(svc), 0, txn)
		if _, werr := w.Write(frame.Marshal()); werr != nil {
			return framesWritten, werr
		}
		framesWritten++
		txn++
	}

	t.Logger.Info("force-closed qmi clients", "frames", framesWritten, "tracked", len(entries))
	return framesWritten, nil
}
