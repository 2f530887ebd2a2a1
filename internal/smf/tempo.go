package smf

import "time"

// defaultTempo is 120 BPM, the MIDI-standard default when a file never
// emits a Set Tempo meta event before the first note.
const defaultTempo = 500000 // microseconds per quarter note

// tempoSegment is one piecewise-linear stretch of the tick→wall-clock
// mapping: starting at startTick/startTime, every tick advances wall time
// by UsPerQuarter/TicksPerQuarter microseconds until the next segment.
type tempoSegment struct {
	startTick      uint64
	startTime      time.Duration
	usPerQuarter   uint32
}

// TempoMap converts ticks to wall-clock duration for a ticks-per-quarter
// SMF timebase, built from the Set Tempo meta events in sender (absolute
// tick) order.
type TempoMap struct {
	ticksPerQuarter uint16
	segments        []tempoSegment
}

// NewTempoMap builds a TempoMap from tempo-change events already carrying
// absolute tick positions (see AbsoluteTicks). Events must be sorted by
// absolute tick; only Set Tempo events matter here, everything else is
// ignored.
func NewTempoMap(ticksPerQuarter uint16, tempoChanges []AbsoluteEvent) *TempoMap {
	tm := &TempoMap{ticksPerQuarter: ticksPerQuarter}
	tm.segments = append(tm.segments, tempoSegment{startTick: 0, startTime: 0, usPerQuarter: defaultTempo})

	for _, ac := range tempoChanges {
		usPerQuarter, ok := ac.Event.Tempo()
		if !ok {
			continue
		}
		at := tm.ToDuration(ac.AbsoluteTicks)
		tm.segments = append(tm.segments, tempoSegment{
			startTick:    ac.AbsoluteTicks,
			startTime:    at,
			usPerQuarter: usPerQuarter,
		})
	}

	return tm
}

// ToDuration converts an absolute tick count into wall-clock duration
// from the start of playback, by piecewise-linear accumulation over
// tempo segments (spec 4.5).
func (tm *TempoMap) ToDuration(tick uint64) time.Duration {
	seg := tm.segments[0]
	for _, s := range tm.segments {
		if s.startTick > tick {
			break
		}
		seg = s
	}

	deltaTicks := tick - seg.startTick
	usPerTick := float64(seg.usPerQuarter) / float64(tm.ticksPerQuarter)
	return seg.startTime + time.Duration(float64(deltaTicks)*usPerTick*float64(time.Microsecond))
}

// smpteToDuration converts an absolute tick count under an SMPTE timebase,
// where every tick is a fixed duration (no tempo map applies).
func smpteToDuration(tick uint64, framesPerSecond int8, ticksPerFrame uint8) time.Duration {
	secondsPerTick := 1.0 / (float64(framesPerSecond) * float64(ticksPerFrame))
	return time.Duration(float64(tick) * secondsPerTick * float64(time.Second))
}
