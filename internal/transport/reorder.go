package transport

// seqDiff returns a-b as a signed distance around the 16-bit sequence
// space, so comparisons keep working across wraparound.
func seqDiff(a, b uint16) int32 {
	return int32(int16(a - b))
}

// reassembler restores in-order delivery of UMP Data commands received
// over a lossy, possibly-reordering UDP transport: packets arriving ahead
// of the next expected sequence number are buffered until the gap fills
// in, duplicates (replayed retransmissions) are dropped, and a persistent
// gap is reported so the caller can issue a Retransmit Request. The first
// expected sequence number is 0, the first one a Session sends, so packets
// reordered at the very start of a session are buffered like any others.
type reassembler struct {
	nextExpected uint16
	pending      map[uint16][]uint32
	maxPending   int
}

func newReassembler() *reassembler {
	return &reassembler{pending: make(map[uint16][]uint32), maxPending: 4096}
}

// feed processes one received (seq, words) pair. It returns the slice of
// word-groups now ready for in-order delivery (possibly draining several
// buffered entries at once), and the list of sequence numbers that are
// still missing and should be retransmit-requested if they remain missing
// after the round trip.
func (r *reassembler) feed(seq uint16, words []uint32) (deliver [][]uint32, gap []uint16) {
	diff := seqDiff(seq, r.nextExpected)
	switch {
	case diff < 0:
		// Duplicate of something already delivered; drop.
		return nil, nil
	case diff == 0:
		deliver = append(deliver, words)
		r.nextExpected++
		for {
			next, ok := r.pending[r.nextExpected]
			if !ok {
				break
			}
			delete(r.pending, r.nextExpected)
			deliver = append(deliver, next)
			r.nextExpected++
		}
		return deliver, nil
	default:
		if _, dup := r.pending[seq]; !dup && len(r.pending) < r.maxPending {
			r.pending[seq] = words
		}
		for i := int32(0); i < diff; i++ {
			missing := r.nextExpected + uint16(i)
			if _, got := r.pending[missing]; !got {
				gap = append(gap, missing)
			}
		}
		return nil, gap
	}
}
