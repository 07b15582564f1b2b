// Package flash is a thin, fixed-offset reader/writer over the modem's
// misc partition: a handful of persistent settings (ADB on/off, USB
// audio on/off, next-boot mode) are kept as magic strings at known byte
// offsets rather than in any filesystem, since the partition is read
// long before any filesystem is mounted. This package is a contract
// wrapper only; it contains no algorithm beyond seek-then-read/write.
package flash

import (
	"bytes"
	"fmt"
	"os"
)

// Fixed byte offsets into the misc partition (spec.md §6).
const (
	OffsetADB       = 64
	OffsetUSBAudio  = 96
	OffsetBootMode  = 131072
)

// settingSlotSize is the zero-padded width every magic-string slot is
// read and written at, matching the 32-byte stack buffers the source
// uses for both the ADB and USB-audio flags.
const settingSlotSize = 32

// Magic strings persisted at OffsetADB / OffsetUSBAudio. The header
// defining their literal values was not part of the retrieved source;
// these are a faithful reconstruction of the same role (a fixed marker
// distinguishing "on" from "absent/anything else").
const (
	magicADBOn      = "QTI_ADB_ON"
	magicADBOff     = "QTI_ADB_OFF"
	magicUSBAudioOn = "QTI_USB_AUDIO_ON"
)

// BootMode selects the target mode set_next_fastboot_mode requests.
type BootMode int

const (
	BootModeFastboot BootMode = iota
	BootModeRecovery
)

// fastbootCommand mirrors struct fastboot_command: a command keyword
// plus a status flag, both fixed-width and NUL-padded.
type fastbootCommand struct {
	Command [32]byte
	Status  [16]byte
}

func fixedString(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

// Store wraps the misc partition's device node.
type Store struct {
	path string
}

// New returns a Store targeting the misc-partition device node at path
// (e.g. "/dev/mtdblock12"). The device is opened fresh for every
// operation, matching the source's open/seek/act/close pattern rather
// than holding a descriptor open across calls.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) readAt(offset int64, n int) ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read %s at %d: %w", s.path, offset, err)
	}
	return buf, nil
}

func (s *Store) writeAt(offset int64, data []byte) error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write %s at %d: %w", s.path, offset, err)
	}
	return nil
}

// IsADBEnabled reports the persisted ADB setting. A read failure is
// treated as "enabled", matching is_adb_enabled's fail-open default.
func (s *Store) IsADBEnabled() bool {
	buf, err := s.readAt(OffsetADB, settingSlotSize)
	if err != nil {
		return true
	}
	return bytes.HasPrefix(buf, []byte(magicADBOn))
}

// SetADB persists the ADB on/off flag. Implements command.AdbSetter.
func (s *Store) SetADB(enabled bool) error {
	magic := magicADBOff
	if enabled {
		magic = magicADBOn
	}
	return s.writeAt(OffsetADB, fixedString(magic, settingSlotSize))
}

// USBAudioEnabled reports the persisted USB-audio-output setting.
func (s *Store) USBAudioEnabled() bool {
	buf, err := s.readAt(OffsetUSBAudio, settingSlotSize)
	if err != nil {
		return false
	}
	return bytes.HasPrefix(buf, []byte(magicUSBAudioOn))
}

// SetUSBAudio persists whether audio is routed over the USB gadget
// instead of the on-board I2S codec. Writing "disabled" stores a
// zeroed slot, per store_audio_output_mode's else-branch leaving buff
// all zero rather than writing an explicit off-magic.
func (s *Store) SetUSBAudio(enabled bool) error {
	if enabled {
		return s.writeAt(OffsetUSBAudio, fixedString(magicUSBAudioOn, settingSlotSize))
	}
	return s.writeAt(OffsetUSBAudio, make([]byte, settingSlotSize))
}

// SetNextBootMode persists the next-boot fastboot/recovery request at
// OffsetBootMode, consumed by the bootloader before any filesystem is
// available.
func (s *Store) SetNextBootMode(mode BootMode) error {
	cmd := fastbootCommand{Status: [16]byte{}}
	copy(cmd.Status[:], "force")
	switch mode {
	case BootModeFastboot:
		copy(cmd.Command[:], "boot_fastboot")
	case BootModeRecovery:
		copy(cmd.Command[:], "boot_recovery")
	}

	buf := make([]byte, 0, len(cmd.Command)+len(cmd.Status))
	buf = append(buf, cmd.Command[:]...)
	buf = append(buf, cmd.Status[:]...)
	return s.writeAt(OffsetBootMode, buf)
}
