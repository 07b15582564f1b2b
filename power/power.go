// Package power implements the reboot/shutdown/USB-suspend-inhibit and
// call-me-back side effects the command interpreter (C8) triggers:
// delayed reboot/poweroff via the kernel reboot(2) syscall, USB gadget
// function restart via sysfs, and a one-shot scheduled callback flag.
// Grounded on delayed_reboot/delayed_shutdown/restart_usb_stack/
// schedule_call in helpers.c and command.c.
package power

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Sysfs paths controlling the USB gadget's enable flag and exposed
// function list. The header defining these literal paths was not part
// of the retrieved source; these mirror the role write_to(USB_EN_PATH,
// ...) and write_to(USB_FUNC_PATH, ...) play in restart_usb_stack.
const (
	usbEnablePath   = "/sys/class/android_usb/android0/enable"
	usbFunctionPath = "/sys/class/android_usb/android0/functions"
)

func writeTo(path, val string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(val); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AdbStater reports whether persistent ADB is currently enabled, so the
// USB function list can be assembled the way restart_usb_stack does.
type AdbStater interface {
	IsADBEnabled() bool
}

// USBController restarts the USB gadget stack and inhibits/allows
// autosuspend. Reboot is a separate concern (Controller below).
type USBController struct {
	Adb AdbStater

	inhibited atomic.Bool
}

// NewUSBController builds a USBController consulting adb for whether the
// ffs function belongs in the gadget's function list.
func NewUSBController(adb AdbStater) *USBController {
	return &USBController{Adb: adb}
}

// ToggleSuspendInhibit flips whether USB autosuspend is blocked. The
// source toggles the same flag off on both the "inhibit" and "allow"
// commands (command.c cases 9/10 both call set_suspend_inhibit(false));
// this keeps the boolean meaningful instead of reproducing that quirk.
func (u *USBController) ToggleSuspendInhibit() error {
	next := !u.inhibited.Load()
	u.inhibited.Store(next)
	val := "0"
	if next {
		val = "1"
	}
	return writeTo("/sys/class/android_usb/android0/suspend_inhibit", val)
}

// Restart cycles the gadget's enable flag and reasserts its function
// list, matching restart_usb_stack's disable/set-functions/sleep/enable
// sequence (the audio function is left to the caller via functions, since
// that depends on the USB-audio-output setting this package doesn't
// otherwise track).
func (u *USBController) Restart(functions []string) error {
	fnList := ""
	for i, f := range functions {
		if i > 0 {
			fnList += ","
		}
		fnList += f
	}
	if u.Adb != nil && u.Adb.IsADBEnabled() {
		if fnList != "" {
			fnList += ","
		}
		fnList += "ffs"
	}

	if err := writeTo(usbEnablePath, "0"); err != nil {
		return err
	}
	if err := writeTo(usbFunctionPath, fnList); err != nil {
		return err
	}
	time.Sleep(time.Second)
	return writeTo(usbEnablePath, "1")
}

// Controller performs a delayed reboot or poweroff via the kernel
// reboot(2) syscall, matching delayed_reboot/delayed_shutdown's
// sleep-then-reboot() pattern. A scheduled reboot or poweroff cannot be
// cancelled once requested.
type Controller struct{}

// Reboot sleeps for delay then issues LINUX_REBOOT_CMD_RESTART in a
// background goroutine, returning immediately so the caller can still
// enqueue its reply SMS first.
func (Controller) Reboot(delay time.Duration) error {
	go func() {
		time.Sleep(delay)
		unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
	}()
	return nil
}

// Shutdown sleeps for delay then issues LINUX_REBOOT_CMD_POWER_OFF.
func (Controller) Shutdown(delay time.Duration) error {
	go func() {
		time.Sleep(delay)
		unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
	}()
	return nil
}

// CallbackFlag implements command.CallbackScheduler: it raises a pending
// "call the user back" flag after delay, mirroring schedule_call's
// sleep(delaysec) then set_pending_call_flag(true).
type CallbackFlag struct {
	pending atomic.Bool
}

// ScheduleCallback arranges for Pending to report true after delay.
func (c *CallbackFlag) ScheduleCallback(delay time.Duration) {
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		c.pending.Store(true)
	}()
}

// Pending reports whether a scheduled callback has fired, and clears the
// flag (callers act on it at most once).
func (c *CallbackFlag) Pending() bool {
	return c.pending.Swap(false)
}
