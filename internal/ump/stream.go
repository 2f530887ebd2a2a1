package ump

import "fmt"

// StreamFormat is the 2-bit Format field of a UMP Stream message, allowing
// a payload to span multiple 128-bit packets.
type StreamFormat uint8

const (
	StreamComplete StreamFormat = 0x0
	StreamStart    StreamFormat = 0x1
	StreamContinue StreamFormat = 0x2
	StreamEnd      StreamFormat = 0x3
)

// Stream statuses relevant to endpoint/function-block discovery.
const (
	StatusEndpointDiscovery          uint16 = 0x00
	StatusEndpointInfoNotification   uint16 = 0x01
	StatusDeviceIdentityNotification uint16 = 0x02
	StatusEndpointNameNotification   uint16 = 0x03
	StatusProductInstanceIDNotify    uint16 = 0x04
	StatusStreamConfigRequest        uint16 = 0x05
	StatusStreamConfigNotification   uint16 = 0x06
	StatusFunctionBlockDiscovery     uint16 = 0x10
	StatusFunctionBlockInfoNotify    uint16 = 0x11
	StatusFunctionBlockNameNotify    uint16 = 0x12
)

// StreamMessage is a four-word MT=0xF packet: a 10-bit Status, a 2-bit
// Format, and up to 14 bytes of payload per packet (2 bytes in word 0, 4
// bytes in each of words 1-3).
type StreamMessage struct {
	Format StreamFormat
	Status uint16
	// Data is always exactly 14 bytes: the wire format has no explicit
	// byte count, unlike SysEx7/SysEx8. A payload shorter than a 14-byte
	// window is zero-padded; StreamReassembler preserves that padding
	// verbatim, and callers interpreting UTF-8 text trim trailing NULs.
	Data []byte
}

func decodeStreamMessage(words []uint32) StreamMessage {
	word0 := words[0]
	format := StreamFormat((word0 >> 26) & 0x3)
	status := uint16((word0 >> 16) & 0x3FF)

	all := make([]byte, 0, 14)
	all = append(all, byte(word0>>8), byte(word0))
	for _, w := range words[1:4] {
		all = append(all, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}

	return StreamMessage{Format: format, Status: status, Data: all}
}

func (s StreamMessage) MessageType() MessageType { return MTStream }

func (s StreamMessage) Words() []uint32 {
	var b [14]byte
	copy(b[:], s.Data)

	word0 := uint32(MTStream)<<28 | uint32(s.Format&0x3)<<26 | uint32(s.Status&0x3FF)<<16 |
		uint32(b[0])<<8 | uint32(b[1])
	word1 := uint32(b[2])<<24 | uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5])
	word2 := uint32(b[6])<<24 | uint32(b[7])<<16 | uint32(b[8])<<8 | uint32(b[9])
	word3 := uint32(b[10])<<24 | uint32(b[11])<<16 | uint32(b[12])<<8 | uint32(b[13])

	return []uint32{word0, word1, word2, word3}
}

// SplitStreamPayload frames an arbitrary payload (e.g. a UTF-8 endpoint
// name) as one Complete packet if it fits in 14 bytes, or a Start/Continue*/
// End chain otherwise. Every packet's Data is zero-padded to exactly 14
// bytes, matching the StreamMessage wire representation.
func SplitStreamPayload(status uint16, payload []byte) []StreamMessage {
	pad := func(chunk []byte) []byte {
		out := make([]byte, 14)
		copy(out, chunk)
		return out
	}

	if len(payload) <= 14 {
		return []StreamMessage{{Format: StreamComplete, Status: status, Data: pad(payload)}}
	}

	var out []StreamMessage
	for offset := 0; offset < len(payload); offset += 14 {
		end := offset + 14
		if end > len(payload) {
			end = len(payload)
		}

		var format StreamFormat
		switch {
		case offset == 0:
			format = StreamStart
		case end == len(payload):
			format = StreamEnd
		default:
			format = StreamContinue
		}

		out = append(out, StreamMessage{Format: format, Status: status, Data: pad(payload[offset:end])})
	}

	return out
}

// ErrReassemblyAborted is surfaced (not fatal) when a new Start arrives for
// a status that already had an in-progress reassembly: the previous partial
// payload is discarded.
var ErrReassemblyAborted = fmt.Errorf("ump: stream reassembly aborted by new Start")

// StreamReassembler concatenates Start/Continue*/End Stream message
// payloads into a complete byte string, keyed by Status. A single dynamic
// buffer per status suffices since Stream messages are serialized per
// endpoint.
type StreamReassembler struct {
	pending map[uint16][]byte
}

// NewStreamReassembler returns an empty reassembler.
func NewStreamReassembler() *StreamReassembler {
	return &StreamReassembler{pending: make(map[uint16][]byte)}
}

// Feed processes one Stream message. It returns (payload, true, nil) when a
// message completes (Complete, or the End of a Start/Continue* run); a
// non-nil diagnostic error (ErrReassemblyAborted) is returned alongside
// ok=false if this Start preempted an abandoned in-progress reassembly.
func (r *StreamReassembler) Feed(msg StreamMessage) (payload []byte, ok bool, diagnostic error) {
	switch msg.Format {
	case StreamComplete:
		delete(r.pending, msg.Status)
		return append([]byte(nil), msg.Data...), true, nil
	case StreamStart:
		_, wasPending := r.pending[msg.Status]
		r.pending[msg.Status] = append([]byte(nil), msg.Data...)
		if wasPending {
			return nil, false, ErrReassemblyAborted
		}
		return nil, false, nil
	case StreamContinue:
		buf, started := r.pending[msg.Status]
		if !started {
			return nil, false, fmt.Errorf("ump: stream Continue without Start for status %#x", msg.Status)
		}
		r.pending[msg.Status] = append(buf, msg.Data...)
		return nil, false, nil
	case StreamEnd:
		buf, started := r.pending[msg.Status]
		if !started {
			return nil, false, fmt.Errorf("ump: stream End without Start for status %#x", msg.Status)
		}
		out := append(buf, msg.Data...)
		delete(r.pending, msg.Status)
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("ump: invalid stream format %d", msg.Format)
	}
}
