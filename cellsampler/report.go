package cellsampler

import (
	"strconv"
	"strings"
)

// NetType identifies which serving-cell report shape a line decodes to.
type NetType int

const (
	NetUnknown NetType = -1
	NetGSM     NetType = 0
	NetWCDMA   NetType = 1
	NetLTE     NetType = 2
)

func (n NetType) String() string {
	switch n {
	case NetGSM:
		return "GSM"
	case NetWCDMA:
		return "WCDMA"
	case NetLTE:
		return "LTE"
	default:
		return "unknown"
	}
}

// emptyField is the sentinel value substituted for an engineering-mode
// field that was left blank ("-") or that fell past an embedded NUL in
// the raw response (spec.md §9's "parser returns empty fields on
// embedded NUL").
const emptyField = -999

// GSMCell holds the GSM-specific fields of a serving-cell report.
type GSMCell struct {
	LAC, CellID                       string
	BSIC, ARFCN, Band                 int
	RxLev, TxPower, RLA, DRX          int
	C1, C2                            int
	GPRS, TCH, TS, TA, MAIO, HSN      int
	RxLevSub, RxLevFull               int
	RxQualSub, RxQualFull, VoiceCodec int
}

// WCDMACell holds the WCDMA-specific fields of a serving-cell report.
type WCDMACell struct {
	LAC, CellID                     string
	UARFCN, PSC, RAC                int
	RSCP, EcIo                      int
	PhyCH, SF, Slot                 int
	SpeechCodec, ConnectionMode     int
}

// LTECell holds the LTE-specific fields of a serving-cell report.
type LTECell struct {
	IsTDD                             int
	CellID                            string
	PCID, EARFCN, FreqBandInd         int
	ULBandwidth, DLBandwidth          int
	TAC                               int
	RSRP, RSRQ, RSSI, SINR, SRxLev    int
}

// Report is a decoded engineering-mode serving-cell report, grounded
// directly on the reverse-engineered response layout: a comma-separated
// line whose field count and meaning depend on which network type it
// names.
type Report struct {
	NetType  NetType
	MCC, MNC int
	CellID   string

	GSM   GSMCell
	WCDMA WCDMACell
	LTE   LTECell
}

// tokenize splits raw on commas to recover the positional fields the
// engineering-mode response packs in. The original scraper relies on
// strtok writing NUL terminators in place and then rescanning for zero
// bytes; a raw response that itself contains an embedded NUL left that
// rescan pointed at garbage. Here an embedded NUL simply truncates the
// tokenization: everything from the NUL onward is dropped, so the
// caller sees empty fields rather than corrupted ones.
func tokenize(raw string) []string {
	if i := strings.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return strings.Split(raw, ",")
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	v := strings.TrimSpace(fields[i])
	if v == "-" {
		return ""
	}
	return v
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func intField(fields []string, i int) int {
	return atoiOr(field(fields, i), emptyField)
}

// ParseReport decodes a +QENG-style serving-cell report line, dispatching
// on the network-name substring the way the original scraper does
// before trusting any positional field.
func ParseReport(raw string) Report {
	fields := tokenize(raw)
	r := Report{NetType: NetUnknown}

	switch {
	case strings.Contains(raw, "GSM"):
		r.NetType = NetGSM
		r.MCC = intField(fields, 3)
		r.MNC = intField(fields, 4)
		r.CellID = field(fields, 6)
		r.GSM = GSMCell{
			LAC:         field(fields, 5),
			CellID:      field(fields, 6),
			BSIC:        intField(fields, 7),
			ARFCN:       intField(fields, 8),
			Band:        intField(fields, 9),
			RxLev:       intField(fields, 10),
			TxPower:     intField(fields, 11),
			RLA:         intField(fields, 12),
			DRX:         intField(fields, 13),
			C1:          intField(fields, 14),
			C2:          intField(fields, 15),
			GPRS:        intField(fields, 16),
			TCH:         intField(fields, 17),
			TS:          intField(fields, 18),
			TA:          intField(fields, 19),
			MAIO:        intField(fields, 20),
			HSN:         intField(fields, 21),
			RxLevSub:    intField(fields, 22),
			RxLevFull:   intField(fields, 23),
			RxQualSub:   intField(fields, 24),
			RxQualFull:  intField(fields, 25),
			VoiceCodec:  intField(fields, 26),
		}

	case strings.Contains(raw, "WCDMA"):
		r.NetType = NetWCDMA
		r.MCC = intField(fields, 3)
		r.MNC = intField(fields, 4)
		r.CellID = field(fields, 6)
		r.WCDMA = WCDMACell{
			LAC:             field(fields, 5),
			CellID:          field(fields, 6),
			UARFCN:          intField(fields, 7),
			PSC:             intField(fields, 8),
			RAC:             intField(fields, 9),
			RSCP:            intField(fields, 10),
			EcIo:            intField(fields, 11),
			PhyCH:           intField(fields, 12),
			SF:              intField(fields, 13),
			Slot:            intField(fields, 14),
			SpeechCodec:     intField(fields, 15),
			ConnectionMode:  intField(fields, 16),
		}

	case strings.Contains(raw, "LTE"):
		r.NetType = NetLTE
		r.MCC = intField(fields, 4)
		r.MNC = intField(fields, 5)
		r.CellID = field(fields, 6)
		r.LTE = LTECell{
			IsTDD:        intField(fields, 3),
			CellID:       field(fields, 6),
			PCID:         intField(fields, 7),
			EARFCN:       intField(fields, 8),
			FreqBandInd:  intField(fields, 9),
			ULBandwidth:  intField(fields, 10),
			DLBandwidth:  intField(fields, 11),
			TAC:          intField(fields, 12),
			RSRP:         intField(fields, 13),
			RSRQ:         intField(fields, 14),
			RSSI:         intField(fields, 15),
			SINR:         intField(fields, 16),
			SRxLev:       intField(fields, 17),
		}
	}

	return r
}

// Indicators is the decoded AT+CIND-style common-indicators response:
// signal bars, service/call/roaming flags, and packet-switched domain
// state. It is decoded by fixed character offsets, not through the
// tokenizer used for cell reports.
type Indicators struct {
	SignalBars int
	InService  bool
	InCall     bool
	IsRoaming  bool
	PSDomain   bool
}

// ParseIndicators decodes a +CIND-style response by character offset,
// mirroring read_at_cind's fixed-offset scrape of the reply string.
func ParseIndicators(raw string) Indicators {
	get := func(offset int) int {
		if offset >= len(raw) {
			return 0
		}
		n, err := strconv.Atoi(string(raw[offset]))
		if err != nil {
			return 0
		}
		return n
	}
	if len(raw) <= 18 {
		return Indicators{}
	}
	return Indicators{
		SignalBars: get(11),
		InService:  get(13) != 0,
		InCall:     get(15) != 0,
		IsRoaming:  get(17) != 0,
		PSDomain:   get(21) != 0,
	}
}

// SignalPercent converts a 0-5 bar reading into the 0-100% scale the
// command interpreter's "signal report" reply surfaces.
func (i Indicators) SignalPercent() int {
	if i.SignalBars <= 0 {
		return 0
	}
	return i.SignalBars * 100 / 5
}
