// Package devicepath opens the character-device endpoints the proxies and
// the IPC router client operate on, and tags them for trace output.
package devicepath

import (
	"fmt"
	"os"
)

// Endpoint is a named descriptor opened on a character device. The tag is
// used only in trace/log output; it carries no wire meaning.
type Endpoint struct {
	Tag  string
	Path string
	file *os.File
}

// Open opens path for read/write and returns an Endpoint tagged tag.
// The device is not created if missing: a character device that doesn't
// exist yet is a bring-up failure, not something this layer should paper
// over by creating a regular file in its place.
func Open(tag, path string) (*Endpoint, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", tag, path, err)
	}
	return &Endpoint{Tag: tag, Path: path, file: f}, nil
}

// Read implements io.Reader.
func (e *Endpoint) Read(p []byte) (int, error) {
	return e.file.Read(p)
}

// Write implements io.Writer.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.file.Write(p)
}

// Close implements io.Closer.
func (e *Endpoint) Close() error {
	return e.file.Close()
}

// Fd returns the raw file descriptor, needed for poll/select readiness
// waits and for issuing ioctls directly against the device.
func (e *Endpoint) Fd() uintptr {
	return e.file.Fd()
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s(%s)", e.Tag, e.Path)
}
