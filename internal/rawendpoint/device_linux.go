//go:build linux

package rawendpoint

import (
	"fmt"
	"os"

	"github.com/pkg/term"
)

// OpenDevice opens a Linux character device by path as a Device. It tries
// the teacher's serial_port_open idiom first (github.com/pkg/term, which
// knows how to get/set termios state on a tty-like fd) since that is the
// library already in this stack for "open a device path, get back a
// Read/Write/Close handle". Unlike a serial port, a UMP rawmidi character
// device under /dev/snd has no line discipline to configure — we never
// call SetSpeed or request raw mode, only use term.Open for the handle
// itself. Plain character devices that reject tty ioctls fall back to a
// bare os.OpenFile, since they are still valid word-aligned byte streams.
func OpenDevice(path string) (Device, error) {
	if t, err := term.Open(path); err == nil {
		return t, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("rawendpoint: opening device %s: %w", path, err)
	}
	return f, nil
}
