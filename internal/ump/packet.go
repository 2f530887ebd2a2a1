// Package ump implements the MIDI 2.0 Universal MIDI Packet codec: framing,
// encoding and decoding of all UMP message families (32/64/96/128-bit
// packets).
package ump

import "errors"

// MessageType is the 4-bit Message Type carried in the high nibble of the
// first word of every UMP packet. It determines the packet's size.
type MessageType uint8

const (
	MTUtility          MessageType = 0x0
	MTSystemCommon     MessageType = 0x1
	MTMIDI1ChannelV    MessageType = 0x2
	MTData64           MessageType = 0x3 // SysEx7
	MTMIDI2ChannelV    MessageType = 0x4
	MTData128          MessageType = 0x5 // SysEx8 / Mixed Data Set
	MTFlexData         MessageType = 0xD
	MTStream           MessageType = 0xF
	mtReserved6        MessageType = 0x6
	mtReserved7        MessageType = 0x7
	mtReserved8        MessageType = 0x8
	mtReserved9        MessageType = 0x9
	mtReservedA        MessageType = 0xA
	mtReservedB        MessageType = 0xB
	mtReservedC        MessageType = 0xC
	mtReservedE        MessageType = 0xE
)

// ErrTruncated is returned by DecodePacket when fewer words are available
// than the packet's Message Type requires.
var ErrTruncated = errors.New("ump: truncated packet")

// Packet is implemented by every decoded UMP message variant. Words returns
// the packet's canonical wire words; DecodePacket(p.Words()) must always
// round-trip to an equal value for non-Opaque variants.
type Packet interface {
	MessageType() MessageType
	Words() []uint32
}

// Grouped is implemented by packet variants that carry a 4-bit Group.
// Utility and Stream packets are group-less and do not implement it.
type Grouped interface {
	Group() uint8
}

// sizeForMT returns the packet size, in 32-bit words, for a given Message
// Type. Reserved MTs still have a fixed size per the UMP family layout so an
// Opaque packet of the right length can be preserved byte-exactly.
func sizeForMT(mt MessageType) int {
	switch mt {
	case MTUtility, MTSystemCommon, MTMIDI1ChannelV:
		return 1
	case MTData64, MTMIDI2ChannelV, MTFlexData:
		return 2
	case mtReserved6, mtReserved7:
		return 1
	case mtReserved8, mtReserved9, mtReservedA:
		return 2
	case mtReservedB, mtReservedC:
		return 3
	case MTData128:
		return 4
	case mtReservedE:
		return 4
	case MTStream:
		return 4
	default:
		return 1
	}
}

// DecodePacket reads the Message Type from words[0], determines the
// packet's size, and parses it into a tagged Packet variant. It returns the
// number of words consumed. Reserved Message Types never fail to decode:
// they come back as an Opaque packet preserving the raw words.
func DecodePacket(words []uint32) (Packet, int, error) {
	if len(words) == 0 {
		return nil, 0, ErrTruncated
	}

	mt := MessageType(words[0] >> 28)
	size := sizeForMT(mt)

	if len(words) < size {
		return nil, 0, ErrTruncated
	}

	switch mt {
	case MTUtility:
		return decodeUtility(words[0]), size, nil
	case MTSystemCommon:
		return decodeSystemMessage(words[0]), size, nil
	case MTMIDI1ChannelV:
		return decodeMIDI1ChannelVoice(words[0]), size, nil
	case MTData64:
		return decodeSysEx7(words[:size]), size, nil
	case MTMIDI2ChannelV:
		return decodeMIDI2ChannelVoice(words[:size]), size, nil
	case MTData128:
		return decodeSysEx8(words[:size]), size, nil
	case MTStream:
		return decodeStreamMessage(words[:size]), size, nil
	default:
		return decodeOpaque(mt, words[:size]), size, nil
	}
}

// EncodePacket appends p's canonical words to out and returns the extended
// slice.
func EncodePacket(out []uint32, p Packet) []uint32 {
	return append(out, p.Words()...)
}

// Opaque preserves a packet of an unrecognized (reserved) Message Type
// byte-exactly, so a decoder never has to reject or interpret it.
type Opaque struct {
	MT    MessageType
	Raw   []uint32
}

func decodeOpaque(mt MessageType, words []uint32) Opaque {
	raw := make([]uint32, len(words))
	copy(raw, words)
	return Opaque{MT: mt, Raw: raw}
}

func (o Opaque) MessageType() MessageType { return o.MT }
func (o Opaque) Words() []uint32          { return o.Raw }
