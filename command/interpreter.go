// Package command implements the command interpreter (C8): it matches
// intercepted outbound SMS bodies against a static and a prefix command
// table, dispatches injected side effects, and enqueues reply bodies
// through the SMS state machine.
package command

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/openqti-go/qtisupervisor/sms"
)

// maxReplyChunk is the longest single SMS body a paged reply (log/dmesg
// dump) is split into, matching the 160-character text-SMS ceiling
// spec.md §3 gives PendingMessage.text (command.c's MAX_MESSAGE_SIZE
// plays the same role there).
const maxReplyChunk = 160

// LogSource opens a peripheral log file for paging from its start. Kept as a thin
// factory rather than a bare path so tests can substitute an in-memory
// reader (spec.md's "log file I/O" is explicitly peripheral, not a
// modeled component).
type LogSource func() (io.ReadCloser, error)

// AdbSetter toggles the USB ADB function.
type AdbSetter interface {
	SetADB(enabled bool) error
}

// UsbResetter toggles the USB-suspend-inhibit flag.
type UsbResetter interface {
	ToggleSuspendInhibit() error
}

// Rebooter performs delayed reboot/shutdown.
type Rebooter interface {
	Reboot(delay time.Duration) error
	Shutdown(delay time.Duration) error
}

// CallbackScheduler arranges for a pending-call flag to fire after delay.
type CallbackScheduler interface {
	ScheduleCallback(delay time.Duration)
}

// AudioStatus reports the current call-audio routing, consumed by
// informational commands.
type AudioStatus interface {
	CurrentMode() string
}

// CellSampler scrapes the current cell/signal report over AT commands.
type CellSampler interface {
	Sample() (string, error)
}

// Stats exposes the proxy counters surfaced by "rmnet stats"/"gps stats".
type Stats interface {
	Snapshot() string
}

// Interpreter is the C8 command interpreter.
type Interpreter struct {
	tbl table

	History  *History
	Queue    *sms.Queue
	Adb      AdbSetter
	Usb      UsbResetter
	Reboot   Rebooter
	Callback CallbackScheduler
	Audio    AudioStatus
	Cell     CellSampler
	RMNET    Stats
	GPS      Stats

	// LogReader/DmesgReader back the "log"/"dmesg" commands (command.c
	// cases 14-15). Left nil, the command reports no source configured.
	LogReader   LogSource
	DmesgReader LogSource

	BotName  string
	UserName string

	Now  func() time.Time
	Rand func() int
}

// New builds an Interpreter from the embedded command table.
func New() (*Interpreter, error) {
	t, err := loadTable(tableSource)
	if err != nil {
		return nil, err
	}
	return &Interpreter{
		tbl:      t,
		History:  NewHistory(),
		BotName:  "qtisupervisor",
		UserName: "User",
		Now:      time.Now,
		Rand:     rand.Int,
	}, nil
}

func (in *Interpreter) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// matchStatic returns the static entry id for an exact command match, or
// -1.
func (in *Interpreter) matchStatic(body string) int {
	for _, e := range in.tbl.Static {
		if e.Cmd == body {
			return e.ID
		}
	}
	return -1
}

// matchPrefix returns the prefix entry and the remaining argument text
// for the first prefix match, or ok=false.
func (in *Interpreter) matchPrefix(body string) (prefixEntry, string, bool) {
	for _, e := range in.tbl.Prefix {
		if strings.HasPrefix(body, e.Prefix) {
			return e, strings.TrimSpace(strings.TrimPrefix(body, e.Prefix)), true
		}
	}
	return prefixEntry{}, "", false
}

func (in *Interpreter) staticReplyText(id int) string {
	for _, e := range in.tbl.Static {
		if e.ID == id {
			return e.ReplyText
		}
	}
	return ""
}

// Handle processes a decoded SMS body and enqueues the reply through C6.
// It returns the id that was matched (-1 if none) for test observability.
func (in *Interpreter) Handle(body string) int {
	id := in.matchStatic(body)
	var arg string
	if id == -1 {
		if e, rest, ok := in.matchPrefix(body); ok {
			id = e.ID
			arg = rest
		}
	}

	var reply strings.Builder
	if id != -1 && in.History.MatchCount(id) >= RepeatThreshold {
		reply.WriteString(in.randomReproach())
		reply.WriteString("\n")
	}

	reply.WriteString(in.dispatch(id, arg))

	if id != -1 {
		in.History.Add(id)
	}

	if in.Queue != nil {
		in.Queue.Enqueue(reply.String())
	}
	return id
}

// pageReader reads src to completion and splits it into maxReplyChunk-
// sized SMS bodies, enqueueing every chunk but the last directly (so
// each one becomes its own outbound message) and returning the last
// chunk for the caller's own Enqueue call, mirroring command.c cases
// 14/15's repeated add_message_to_queue calls over a file's contents.
func (in *Interpreter) pageReader(open LogSource, what string) string {
	if open == nil {
		return fmt.Sprintf("no %s source configured", what)
	}
	r, err := open()
	if err != nil {
		return fmt.Sprintf("error opening %s: %v", what, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Sprintf("error reading %s: %v", what, err)
	}
	if len(data) == 0 {
		return fmt.Sprintf("%s is empty", what)
	}

	var last string
	for len(data) > 0 {
		n := maxReplyChunk
		if n > len(data) {
			n = len(data)
		}
		chunk := string(data[:n])
		data = data[n:]
		if len(data) == 0 {
			last = chunk
			break
		}
		if in.Queue != nil {
			in.Queue.Enqueue(chunk)
		}
	}
	return last
}

func (in *Interpreter) randomReproach() string {
	if len(in.tbl.RepeatedCmdReplies) == 0 {
		return ""
	}
	r := 0
	if in.Rand != nil {
		r = in.Rand() % len(in.tbl.RepeatedCmdReplies)
	}
	if r < 0 {
		r = -r
	}
	return in.tbl.RepeatedCmdReplies[r]
}

// dispatch builds the reply body for a matched command id, triggering
// any injected side effect along the way.
func (in *Interpreter) dispatch(id int, arg string) string {
	switch id {
	case -1:
		return fmt.Sprintf("Command not found: %s", arg)

	case 0: // help
		return in.staticReplyText(id)

	case 1: // uptime
		var info unix.Sysinfo_t
		if err := unix.Sysinfo(&info); err != nil {
			return "uptime unavailable"
		}
		return fmt.Sprintf("Hi %s, Your uptime is: %d seconds", in.UserName, info.Uptime)

	case 2: // loadavg
		var info unix.Sysinfo_t
		if err := unix.Sysinfo(&info); err != nil {
			return "load average unavailable"
		}
		scale := float64(1 << 16)
		return fmt.Sprintf("Load average: %.2f %.2f %.2f",
			float64(info.Loads[0])/scale, float64(info.Loads[1])/scale, float64(info.Loads[2])/scale)

	case 3: // meminfo
		var info unix.Sysinfo_t
		if err := unix.Sysinfo(&info); err != nil {
			return "memory info unavailable"
		}
		toMB := func(v uint64) uint64 { return v * uint64(info.Unit) / 1024 / 1024 }
		return fmt.Sprintf("Mem total %dMB free %dMB shared %dKB", toMB(info.Totalram), toMB(info.Freeram), info.Sharedram/1024)

	case 4: // version
		return in.staticReplyText(id)

	case 5: // rmnet stats
		if in.RMNET != nil {
			return in.RMNET.Snapshot()
		}
		return "no rmnet stats available"

	case 6: // gps stats
		if in.GPS != nil {
			return in.GPS.Snapshot()
		}
		return "no gps stats available"

	case 7: // adb on
		if in.Adb != nil {
			in.Adb.SetADB(true)
		}
		return in.staticReplyText(id)

	case 8: // adb off
		if in.Adb != nil {
			in.Adb.SetADB(false)
		}
		return in.staticReplyText(id)

	case 9: // usb suspend inhibit
		if in.Usb != nil {
			in.Usb.ToggleSuspendInhibit()
		}
		return in.staticReplyText(id)

	case 10: // reboot
		if in.Reboot != nil {
			in.Reboot.Reboot(5 * time.Second)
		}
		return in.staticReplyText(id)

	case 11: // shutdown
		if in.Reboot != nil {
			in.Reboot.Shutdown(5 * time.Second)
		}
		return in.staticReplyText(id)

	case 12: // signal report
		if in.Cell != nil {
			if report, err := in.Cell.Sample(); err == nil {
				return report
			}
		}
		return "signal report unavailable"

	case 13: // command history
		recent := in.History.Recent(MatchWindow)
		var b strings.Builder
		for _, id := range recent {
			fmt.Fprintf(&b, "%d ", id)
		}
		return strings.TrimSpace(b.String())

	case 14: // log
		return in.pageReader(in.LogReader, "log")

	case 15: // dmesg
		return in.pageReader(in.DmesgReader, "dmesg")

	case 100: // name me <arg>
		in.UserName = arg
		return fmt.Sprintf("Nice to meet you, %s", arg)

	case 101: // name yourself <arg>
		in.BotName = arg
		return fmt.Sprintf("I'll answer to %s now", arg)

	case 102: // call me in N
		minutes, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || minutes <= 0 {
			return "didn't understand the delay"
		}
		if in.Callback != nil {
			in.Callback.ScheduleCallback(time.Duration(minutes) * time.Minute)
		}
		return fmt.Sprintf("Will call you back in %d minute(s)", minutes)

	case 103: // debug cb
		if in.Callback != nil {
			in.Callback.ScheduleCallback(0)
		}
		return "callback fired"

	default:
		return fmt.Sprintf("Command not found: %s", arg)
	}
}
