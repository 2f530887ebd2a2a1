package smf

import (
	"fmt"
	"time"

	"github.com/kb9vty/ump2/internal/ump"
)

// ScheduledPacket pairs a UMP packet with the wall-clock offset (from the
// start of playback) at which the scheduler should dispatch it.
type ScheduledPacket struct {
	At     time.Duration
	Packet ump.Packet
}

// Project converts a format 0 or format 1 file's events into a
// time-ordered, tick-merged sequence of ScheduledPackets on the given
// Group, per spec 4.5's UMP projection rule. Format 2 files have
// independent per-pattern tracks not meant to play simultaneously; use
// ProjectTrack for those.
func Project(file *File, group uint8) ([]ScheduledPacket, error) {
	if file.Format == Format2 {
		return nil, fmt.Errorf("smf: format 2 files have independent tracks, use ProjectTrack")
	}
	return project(file, MergeTracks(file.Tracks), group)
}

// ProjectTrack projects a single track of a format 2 file (or any
// individual track) independently, with its own tick=0 origin.
func ProjectTrack(file *File, trackIndex int, group uint8) ([]ScheduledPacket, error) {
	if trackIndex < 0 || trackIndex >= len(file.Tracks) {
		return nil, fmt.Errorf("smf: track index %d out of range (have %d tracks)", trackIndex, len(file.Tracks))
	}
	return project(file, absoluteTimes(trackIndex, file.Tracks[trackIndex]), group)
}

func project(file *File, merged []AbsoluteEvent, group uint8) ([]ScheduledPacket, error) {
	toDuration, err := timebase(file, merged)
	if err != nil {
		return nil, err
	}

	var out []ScheduledPacket
	var sysexBuf []byte
	var sysexAt time.Duration
	haveSysEx := false

	flushSysEx := func() {
		if !haveSysEx {
			return
		}
		for _, pkt := range ump.SplitSysEx7(group, sysexBuf) {
			out = append(out, ScheduledPacket{At: sysexAt, Packet: pkt})
		}
		sysexBuf = nil
		haveSysEx = false
	}

	for _, ae := range merged {
		at := toDuration(ae.AbsoluteTicks)
		e := ae.Event

		if e.Kind != KindSysEx && haveSysEx {
			flushSysEx()
		}

		switch e.Kind {
		case KindChannelVoice:
			pkt, ok := channelVoiceToUMP(group, e)
			if ok {
				out = append(out, ScheduledPacket{At: at, Packet: pkt})
			}

		case KindSysEx:
			if !e.SysExCont {
				flushSysEx()
				sysexAt = at
			} else if !haveSysEx {
				return nil, fmt.Errorf("smf: sysex continuation (F7) without a preceding F0")
			}
			sysexBuf = append(sysexBuf, e.SysExData...)
			haveSysEx = true

		case KindMeta:
			// Per spec 4.5: only Tempo, End-of-Track, and Time Signature
			// drive playback (tempo already folded into the timebase
			// above); nothing else produces a UMP packet.
		}
	}
	flushSysEx()

	return out, nil
}

func channelVoiceToUMP(group uint8, e Event) (ump.MIDI1ChannelVoice, bool) {
	switch e.Status {
	case 0x80, 0x90, 0xA0, 0xB0, 0xC0, 0xD0, 0xE0:
		return ump.MIDI1ChannelVoice{
			GroupNum: group,
			Status:   e.Status >> 4,
			Channel:  e.Channel,
			Data1:    e.Data1,
			Data2:    e.Data2,
		}, true
	default:
		return ump.MIDI1ChannelVoice{}, false
	}
}

// timebase returns a tick-to-duration conversion function: either the
// SMPTE fixed-rate conversion, or a tempo-map built from the merged
// event stream's Set Tempo events.
func timebase(file *File, merged []AbsoluteEvent) (func(uint64) time.Duration, error) {
	if file.IsSMPTE() {
		fps := file.SMPTEFramesPerSecond()
		tpf := file.SMPTETicksPerFrame()
		if fps == 0 || tpf == 0 {
			return nil, fmt.Errorf("smf: invalid SMPTE division")
		}
		return func(tick uint64) time.Duration { return smpteToDuration(tick, fps, tpf) }, nil
	}

	tpq := file.TicksPerQuarterNote()
	if tpq == 0 {
		return nil, fmt.Errorf("smf: ticks-per-quarter-note division is zero")
	}
	tm := NewTempoMap(tpq, TempoChanges(merged))
	return tm.ToDuration, nil
}
