//go:build linux

package rawendpoint

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// CandidateDevice describes one enumerated raw UMP character device.
type CandidateDevice struct {
	Path   string
	Syspath string
}

// DiscoverDevices enumerates ALSA rawmidi UMP character devices under the
// "sound" subsystem, the way the teacher's go.mod pulls in go-udev for
// device enumeration elsewhere in the stack (GPIO/audio hardware
// discovery). This is a convenience for callers building a `file://`
// endpoint URL interactively; it is not required for the raw endpoint
// itself, which only needs an already-opened Device.
func DiscoverDevices() ([]CandidateDevice, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()

	if err := enum.AddMatchSubsystem("sound"); err != nil {
		return nil, fmt.Errorf("rawendpoint: matching sound subsystem: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("rawendpoint: enumerating devices: %w", err)
	}

	var out []CandidateDevice
	for _, d := range devices {
		node := d.Devnode()
		if node == "" {
			continue
		}
		out = append(out, CandidateDevice{Path: node, Syspath: d.Syspath()})
	}

	return out, nil
}
