// Package qmi recognizes QMUX/QMI framing well enough to interpose on it:
// identify service id, message id and transaction id, track per-client
// registrations, and synthesize frames that round-trip byte for byte.
package qmi

import (
	"encoding/binary"
	"fmt"
)

// Header byte offsets, per spec.md §6's wire format:
//
//	[0x01][len:u16][flags:u8][svc:u8][cid:u8][ctl:u8][txn:u16][msg:u16][plen:u16][tlvs]
const (
	headerSize  = 13
	framingByte = 0x01

	offFraming   = 0
	offLength    = 1
	offFlags     = 3
	offService   = 4
	offClientID  = 5
	offCtlFlags  = 6
	offTxnID     = 7
	offMessageID = 9
	offPayloadLn = 11
	offTLVs      = 13
)

// Well-known service ids this module acts on.
const (
	ServiceWMS = 0x05 // Short Message Service
)

// Well-known QMI_CLIENT_* control messages used by the client tracker.
const (
	MsgClientRegister = 0x0022
	MsgClientRelease  = 0x0023
)

// TLV is a single type/length/value record inside a QMI payload.
type TLV struct {
	Type  byte
	Value []byte
}

// Marshal writes the TLV's wire bytes: [type:u8][len:u16 LE][value...].
func (t TLV) Marshal() []byte {
	out := make([]byte, 3+len(t.Value))
	out[0] = t.Type
	binary.LittleEndian.PutUint16(out[1:3], uint16(len(t.Value)))
	copy(out[3:], t.Value)
	return out
}

// Frame is a parsed view over a QMUX/QMI byte buffer. Parsing never copies
// the TLV payload bytes; Value slices alias the original buffer.
type Frame struct {
	Flags         byte
	ServiceID     byte
	ClientID      byte
	CtlFlags      byte
	TransactionID uint16
	MessageID     uint16
	TLVs          []TLV
}

// Parse recognizes the minimum header required to decide (service,
// message-id, direction, transaction-id). It returns ok=false whenever the
// length field doesn't match the buffer size or the framing byte isn't
// 0x01: per spec.md §3's invariant, such buffers are opaque and must be
// forwarded unmodified rather than partially interpreted.
func Parse(buf []byte) (f Frame, ok bool) {
	if len(buf) < headerSize {
		return Frame{}, false
	}
	if buf[offFraming] != framingByte {
		return Frame{}, false
	}
	length := binary.LittleEndian.Uint16(buf[offLength:])
	if int(length) != len(buf)-1 {
		return Frame{}, false
	}
	payloadLen := binary.LittleEndian.Uint16(buf[offPayloadLn:])
	if int(payloadLen) != len(buf)-offTLVs {
		return Frame{}, false
	}

	f = Frame{
		Flags:         buf[offFlags],
		ServiceID:     buf[offService],
		ClientID:      buf[offClientID],
		CtlFlags:      buf[offCtlFlags],
		TransactionID: binary.LittleEndian.Uint16(buf[offTxnID:]),
		MessageID:     binary.LittleEndian.Uint16(buf[offMessageID:]),
	}

	tlvs, ok := parseTLVs(buf[offTLVs:])
	if !ok {
		return Frame{}, false
	}
	f.TLVs = tlvs
	return f, true
}

func parseTLVs(buf []byte) ([]TLV, bool) {
	var tlvs []TLV
	for len(buf) > 0 {
		if len(buf) < 3 {
			return nil, false
		}
		typ := buf[0]
		ln := binary.LittleEndian.Uint16(buf[1:3])
		if len(buf) < 3+int(ln) {
			return nil, false
		}
		tlvs = append(tlvs, TLV{Type: typ, Value: buf[3 : 3+int(ln)]})
		buf = buf[3+int(ln):]
	}
	return tlvs, true
}

// Marshal serializes f back into its wire form. Every synthetic frame
// emitted by this module MUST satisfy Parse(f.Marshal()) == f (spec.md §6).
func (f Frame) Marshal() []byte {
	var payload []byte
	for _, t := range f.TLVs {
		payload = append(payload, t.Marshal()...)
	}

	total := headerSize + len(payload)
	buf := make([]byte, total)
	buf[offFraming] = framingByte
	binary.LittleEndian.PutUint16(buf[offLength:], uint16(total-1))
	buf[offFlags] = f.Flags
	buf[offService] = f.ServiceID
	buf[offClientID] = f.ClientID
	buf[offCtlFlags] = f.CtlFlags
	binary.LittleEndian.PutUint16(buf[offTxnID:], f.TransactionID)
	binary.LittleEndian.PutUint16(buf[offMessageID:], f.MessageID)
	binary.LittleEndian.PutUint16(buf[offPayloadLn:], uint16(len(payload)))
	copy(buf[offTLVs:], payload)
	return buf
}

// Find returns the first TLV of the given type, if present.
func (f Frame) Find(typ byte) (TLV, bool) {
	for _, t := range f.TLVs {
		if t.Type == typ {
			return t, true
		}
	}
	return TLV{}, false
}

func (f Frame) String() string {
	return fmt.Sprintf("qmi(svc=0x%02x cid=%d txn=%d msg=0x%04x tlvs=%d)",
		f.ServiceID, f.ClientID, f.TransactionID, f.MessageID, len(f.TLVs))
}
