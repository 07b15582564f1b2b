package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestIoc_MatchesLinuxIoctlLayout(t *testing.T) {
	got := ioc(iocRead, 0x72, 0x2, 4)
	want := uintptr(iocRead)<<iocDirShift | uintptr(0x72)<<iocTypeShift | uintptr(0x2)<<iocNRShift | uintptr(4)<<iocSizeShift
	if got != want {
		t.Fatalf("ioc() = %#x, want %#x", got, want)
	}
	// The historical VFAT_IOCTL_READDIR_BOTH-style sanity check: direction
	// bits occupy the top two bits of the 32-bit command.
	if got>>iocDirShift != uintptr(iocRead) {
		t.Fatalf("direction bits not isolated at shift %d: %#x", iocDirShift, got)
	}
}

func TestIoc_DistinctNrYieldsDistinctCommand(t *testing.T) {
	a := ioc(iocWrite, 0xc3, 5, 16)
	b := ioc(iocWrite, 0xc3, 6, 16)
	if a == b {
		t.Fatal("expected different nr to produce different ioctl commands")
	}
}

func TestBuildPortMapperRequest_LengthFieldMatchesPayload(t *testing.T) {
	buf := buildPortMapperRequest(7)
	if len(buf) < 7 {
		t.Fatalf("request too short: %d bytes", len(buf))
	}
	length := binary.LittleEndian.Uint16(buf[5:7])
	if int(length) != len(buf)-7 {
		t.Fatalf("length field = %d, want %d (len(buf)-7)", length, len(buf)-7)
	}
}

func TestBuildPortMapperRequest_EmbedsTransactionIDAndPortName(t *testing.T) {
	buf := buildPortMapperRequest(0x0102)
	gotTxn := binary.LittleEndian.Uint16(buf[1:3])
	if gotTxn != 0x0102 {
		t.Fatalf("transaction id = %#x, want %#x", gotTxn, 0x0102)
	}
	if !bytes.Contains(buf, []byte(SMDControlPort)) {
		t.Fatal("expected the SMD control port name to appear in the request bytes")
	}
}

func TestBuildPortMapperRequest_Deterministic(t *testing.T) {
	a := buildPortMapperRequest(1)
	b := buildPortMapperRequest(1)
	if !bytes.Equal(a, b) {
		t.Fatal("expected identical input to produce identical bytes")
	}
}
