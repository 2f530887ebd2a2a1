package smf

import "sort"

// AbsoluteEvent pairs an Event with its absolute tick position (summed
// delta times from the start of its track) and the index of the track it
// came from, the minimum needed to merge multiple tracks' event streams
// while keeping a deterministic tie-break.
type AbsoluteEvent struct {
	Event         Event
	AbsoluteTicks uint64
	TrackIndex    int
}

// absoluteTimes converts one track's Delta-ticks events into
// AbsoluteEvents by running cumulative sum.
func absoluteTimes(trackIndex int, events []Event) []AbsoluteEvent {
	out := make([]AbsoluteEvent, 0, len(events))
	var tick uint64
	for _, e := range events {
		tick += uint64(e.DeltaTicks)
		out = append(out, AbsoluteEvent{Event: e, AbsoluteTicks: tick, TrackIndex: trackIndex})
	}
	return out
}

// MergeTracks implements spec 4.5's format 1 merge: all tracks combined
// into one absolute-time-sorted sequence, with a stable tie-break
// preferring the lower track index for events at the same tick.
func MergeTracks(tracks [][]Event) []AbsoluteEvent {
	var all []AbsoluteEvent
	for i, track := range tracks {
		all = append(all, absoluteTimes(i, track)...)
	}

	// A stable sort by AbsoluteTicks alone already gives the spec's
	// tie-break: all has tracks appended in ascending TrackIndex order
	// and each track's own events in non-decreasing tick order, so
	// equal-tick events from different tracks keep their input order,
	// which is track-ascending.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].AbsoluteTicks < all[j].AbsoluteTicks
	})
	return all
}

// TempoChanges extracts the Set Tempo events from a merged (or
// single-track) AbsoluteEvent sequence, in order.
func TempoChanges(events []AbsoluteEvent) []AbsoluteEvent {
	var out []AbsoluteEvent
	for _, e := range events {
		if _, ok := e.Event.Tempo(); ok {
			out = append(out, e)
		}
	}
	return out
}
