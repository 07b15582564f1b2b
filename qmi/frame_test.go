package qmi

import "testing"

func buildSample() Frame {
	return Frame{
		Flags:         0x80,
		ServiceID:     ServiceWMS,
		ClientID:      0x01,
		CtlFlags:      0x04,
		TransactionID: 2,
		MessageID:     0x0001,
		TLVs: []TLV{
			{Type: 0x10, Value: []byte{0x01, 0x2a, 0x00, 0x00, 0x00}},
			{Type: 0x12, Value: []byte{0x01}},
		},
	}
}

// §6: parse then serialize yields the exact original bytes.
func TestFrameRoundTrip(t *testing.T) {
	f := buildSample()
	wire := f.Marshal()

	parsed, ok := Parse(wire)
	if !ok {
		t.Fatalf("expected parse success for well-formed frame")
	}
	rewired := parsed.Marshal()

	if len(wire) != len(rewired) {
		t.Fatalf("length mismatch: %d vs %d", len(wire), len(rewired))
	}
	for i := range wire {
		if wire[i] != rewired[i] {
			t.Fatalf("byte %d mismatch: %02x vs %02x", i, wire[i], rewired[i])
		}
	}
}

func TestFrameFieldsSurviveRoundTrip(t *testing.T) {
	f := buildSample()
	parsed, ok := Parse(f.Marshal())
	if !ok {
		t.Fatal("expected parse success")
	}
	if parsed.ServiceID != f.ServiceID || parsed.MessageID != f.MessageID ||
		parsed.TransactionID != f.TransactionID || parsed.ClientID != f.ClientID {
		t.Fatalf("fields did not survive round trip: %+v vs %+v", parsed, f)
	}
	if len(parsed.TLVs) != 2 {
		t.Fatalf("expected 2 TLVs, got %d", len(parsed.TLVs))
	}
}

func TestParseRejectsLengthMismatch(t *testing.T) {
	f := buildSample()
	wire := f.Marshal()
	wire[offLength] = 0xFF // corrupt the length field

	_, ok := Parse(wire)
	if ok {
		t.Fatal("expected parse to fail on length mismatch (BadFrame policy)")
	}
}

func TestParseRejectsBadFramingByte(t *testing.T) {
	f := buildSample()
	wire := f.Marshal()
	wire[offFraming] = 0x02

	_, ok := Parse(wire)
	if ok {
		t.Fatal("expected parse to fail on unexpected framing byte")
	}
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, ok := Parse([]byte{0x01, 0x00})
	if ok {
		t.Fatal("expected parse to fail on truncated buffer")
	}
}

func TestFindTLV(t *testing.T) {
	f := buildSample()
	tlv, ok := f.Find(0x12)
	if !ok || len(tlv.Value) != 1 || tlv.Value[0] != 0x01 {
		t.Fatalf("unexpected TLV lookup result: %+v ok=%v", tlv, ok)
	}
	if _, ok := f.Find(0xEE); ok {
		t.Fatal("expected miss for absent TLV type")
	}
}
