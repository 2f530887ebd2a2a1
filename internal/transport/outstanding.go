package transport

import "fmt"

// outstandingEntry is one sent-but-not-yet-acknowledged UMP Data command
// kept around in case the peer requests a retransmit.
type outstandingEntry struct {
	seq   uint16
	words []uint32
}

// outstandingBuffer is a bounded ring of recently sent UMP Data commands,
// indexed by sequence number, used to answer Retransmit Request commands.
// The spec requires the window to be at least 64; SPEC_FULL.md's Open
// Question decision sets the default to exactly 64. When the buffer is
// full, the oldest entry is evicted to make room for the newest — a
// retransmit request for an evicted sequence number gets a Retransmit
// Error reply rather than silence.
type outstandingBuffer struct {
	entries []outstandingEntry
	cap     int
}

func newOutstandingBuffer(capacity int) *outstandingBuffer {
	if capacity < 1 {
		capacity = 64
	}
	return &outstandingBuffer{cap: capacity}
}

// push records a newly sent command, evicting the oldest if full.
func (b *outstandingBuffer) push(seq uint16, words []uint32) {
	if len(b.entries) >= b.cap {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, outstandingEntry{seq: seq, words: append([]uint32(nil), words...)})
}

// lookup finds a previously sent command by sequence number.
func (b *outstandingBuffer) lookup(seq uint16) ([]uint32, bool) {
	for _, e := range b.entries {
		if e.seq == seq {
			return e.words, true
		}
	}
	return nil, false
}

// ErrSequenceEvicted is returned when a retransmit is requested for a
// sequence number that has aged out of the outstanding buffer.
type ErrSequenceEvicted struct {
	Seq uint16
}

func (e *ErrSequenceEvicted) Error() string {
	return fmt.Sprintf("transport: sequence %d no longer in outstanding buffer", e.Seq)
}
