package sms

import (
	"encoding/binary"
	"time"

	"github.com/openqti-go/qtisupervisor/qmi"
	"github.com/openqti-go/qtisupervisor/sms/gsm7"
)

// WMS message ids (spec.md §4.6, §8 scenarios S1-S3). WMS_DELETE's
// numeric value was not recoverable from the retrieved source (the
// header defining it was filtered out of original_source); 0x0024 is
// used. The RMNET proxy recognises a host delete request only by this
// id, and the synthetic delete acks carry it, so a host that uses a
// different id is forwarded rather than intercepted.
const (
	ServiceWMS        = 0x05
	MsgEventReport    = 0x0001
	MsgRawSend        = 0x0010
	MsgRawWrite       = 0x0011
	MsgReadMessage    = 0x0022
	MsgDelete         = 0x0024
)

// botOriginator is the packed-BCD originator address of the synthetic
// bot sender, "15550199999" padded with a trailing 0xF filler nibble
// (spec.md §4.6; bytes confirmed against original_source's
// build_and_send_message).
var botOriginator = []byte{0x51, 0x55, 0x10, 0x99, 0x99, 0xF9}

const botDigitCount = 11

// smscStub is the hardcoded dummy SMSC address (spec.md §4.6): length
// byte 0x07, type-of-address 0x91 (international), then the number.
var smscStub = []byte{0x07, 0x91, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF0}

const pduFirstOctet = 0x04 // SMS-DELIVER, TP-MMS set (no more messages)

// bcdTimestamp builds the six-byte swapped-BCD SMS-DELIVER timestamp
// (year, month, day, hour, minute, second). A pre-2001 clock is clamped
// to year 2022, per spec.md §6.
func bcdTimestamp(now time.Time) []byte {
	yearsSince1900 := now.Year() - 1900
	var yearByte byte
	if yearsSince1900 > 100 {
		yearByte = gsm7.SwapByte(byte(now.Year() - 2000))
	} else {
		yearByte = gsm7.SwapByte(22)
	}
	return []byte{
		yearByte,
		gsm7.SwapByte(byte(now.Month())),
		gsm7.SwapByte(byte(now.Day())),
		gsm7.SwapByte(byte(now.Hour())),
		gsm7.SwapByte(byte(now.Minute())),
		gsm7.SwapByte(byte(now.Second())),
	}
}

// BuildNotification builds the 29-byte WMS_EVENT_REPORT indication
// frame announcing msg is available for read (spec.md §4.6). The
// transaction id is fixed at 2: this is a synthetic indication, not a
// response to a host request.
func BuildNotification(msg *PendingMessage) []byte {
	storage := make([]byte, 5)
	storage[0] = 0x01 // storage_kind: modem storage
	binary.LittleEndian.PutUint32(storage[1:], msg.ID)

	f := qmi.Frame{
		Flags:         0x80,
		ServiceID:     ServiceWMS,
		ClientID:      0x01,
		CtlFlags:      0x04,
		TransactionID: 2,
		MessageID:     MsgEventReport,
		TLVs: []qmi.TLV{
			{Type: 0x10, Value: storage},
			{Type: 0x12, Value: []byte{0x01}}, // mode: GSM
			{Type: 0x16, Value: []byte{0x00}}, // sms-over-ims: no
		},
	}
	return f.Marshal()
}

// buildDeliverPDU assembles the inline SMS-DELIVER PDU carried inside the
// raw-data TLV: SMSC stub, first octet, originator address, TP-PID,
// TP-DCS, timestamp, TP-UDL, and the GSM-7 packed body.
func buildDeliverPDU(body string, now time.Time) []byte {
	packed := gsm7.Pack(body)

	pdu := make([]byte, 0, len(smscStub)+4+len(botOriginator)+6+1+len(packed))
	pdu = append(pdu, smscStub...)
	pdu = append(pdu, pduFirstOctet)
	pdu = append(pdu, byte(botDigitCount))
	pdu = append(pdu, 0x91) // international
	pdu = append(pdu, botOriginator...)
	pdu = append(pdu, 0x00) // TP-PID
	pdu = append(pdu, 0x00) // TP-DCS
	pdu = append(pdu, bcdTimestamp(now)...)
	pdu = append(pdu, byte(len(body))) // TP-UDL: septet count
	pdu = append(pdu, packed...)
	return pdu
}

// BuildReadPDU builds the response to a host WMS_READ_MESSAGE request,
// echoing txn (spec.md §8 property 5) and carrying msg's body as a
// SMS-DELIVER PDU.
func BuildReadPDU(msg *PendingMessage, txn uint16, now time.Time) []byte {
	result := []byte{0x00, 0x00, 0x00, 0x00} // result=0, response=0

	f := qmi.Frame{
		Flags:         0x80,
		ServiceID:     ServiceWMS,
		ClientID:      0x01,
		CtlFlags:      0x02,
		TransactionID: txn,
		MessageID:     MsgReadMessage,
		TLVs: []qmi.TLV{
			{Type: 0x02, Value: result},
			{Type: 0x01, Value: []byte{0x01}}, // format: 3GPP
			{Type: 0x06, Value: buildDeliverPDU(msg.Body, now)},
		},
	}
	return f.Marshal()
}

// BuildDeleteAcks builds the count delete-response frames (1 or 2,
// per Queue.Tick's AckCount) for the given echoed transaction id. When
// two are required, the first carries the "not yet" result/response
// pair (0x01/0x32) and the second the success pair (0x00/0x00); the
// rationale for requiring both is undocumented upstream and is
// replicated verbatim as a compatibility quirk (spec.md §9).
func BuildDeleteAcks(txn uint16, count int) [][]byte {
	build := func(result, response byte) []byte {
		f := qmi.Frame{
			Flags:         0x80,
			ServiceID:     ServiceWMS,
			ClientID:      0x01,
			CtlFlags:      0x02,
			TransactionID: txn,
			MessageID:     MsgDelete,
			TLVs: []qmi.TLV{
				{Type: 0x02, Value: []byte{result, 0x00, response, 0x00}},
			},
		}
		return f.Marshal()
	}

	if count <= 1 {
		return [][]byte{build(0x00, 0x00)}
	}
	return [][]byte{
		build(0x01, 0x32),
		build(0x00, 0x00),
	}
}
