package ump

// MIDI 1.0 Channel Voice status nibbles (bits 23-20 of word 0).
const (
	Status1NoteOff         uint8 = 0x8
	Status1NoteOn          uint8 = 0x9
	Status1PolyKeyPressure uint8 = 0xA
	Status1ControlChange   uint8 = 0xB
	Status1ProgramChange   uint8 = 0xC
	Status1ChannelPressure uint8 = 0xD
	Status1PitchBend       uint8 = 0xE
)

// MIDI1ChannelVoice is a one-word MT=0x2 packet carrying a MIDI 1.0 channel
// voice message. Layout: MT(4) | Group(4) | Status(4) | Channel(4) |
// Data1(8) | Data2(8).
type MIDI1ChannelVoice struct {
	GroupNum uint8
	Status   uint8 // one of the Status1* constants
	Channel  uint8 // 0-15
	Data1    uint8
	Data2    uint8
}

func decodeMIDI1ChannelVoice(word uint32) MIDI1ChannelVoice {
	return MIDI1ChannelVoice{
		GroupNum: uint8((word >> 24) & 0xF),
		Status:   uint8((word >> 20) & 0xF),
		Channel:  uint8((word >> 16) & 0xF),
		Data1:    uint8((word >> 8) & 0xFF),
		Data2:    uint8(word & 0xFF),
	}
}

func (m MIDI1ChannelVoice) MessageType() MessageType { return MTMIDI1ChannelV }
func (m MIDI1ChannelVoice) Group() uint8             { return m.GroupNum }

func (m MIDI1ChannelVoice) Words() []uint32 {
	word := uint32(MTMIDI1ChannelV)<<28 | uint32(m.GroupNum&0xF)<<24 |
		uint32(m.Status&0xF)<<20 | uint32(m.Channel&0xF)<<16 |
		uint32(m.Data1)<<8 | uint32(m.Data2)
	return []uint32{word}
}

// Note returns Data1 as a note number, for NoteOn/NoteOff/PolyKeyPressure.
func (m MIDI1ChannelVoice) Note() uint8 { return m.Data1 }

// Velocity returns Data2 as a 7-bit velocity, for NoteOn/NoteOff.
func (m MIDI1ChannelVoice) Velocity() uint8 { return m.Data2 }

// Controller returns Data1 as a controller number, for ControlChange.
func (m MIDI1ChannelVoice) Controller() uint8 { return m.Data1 }

// ControllerValue returns Data2 as a 7-bit controller value, for
// ControlChange.
func (m MIDI1ChannelVoice) ControllerValue() uint8 { return m.Data2 }

// Program returns Data1 as a program number, for ProgramChange.
func (m MIDI1ChannelVoice) Program() uint8 { return m.Data1 }

// PitchBendValue reassembles the 14-bit pitch bend value from Data1 (LSB)
// and Data2 (MSB), for PitchBend.
func (m MIDI1ChannelVoice) PitchBendValue() uint16 {
	return uint16(m.Data1&0x7F) | uint16(m.Data2&0x7F)<<7
}

// NewNoteOn builds a MIDI1ChannelVoice NoteOn message.
func NewNoteOn(group, channel, note, velocity uint8) MIDI1ChannelVoice {
	return MIDI1ChannelVoice{GroupNum: group, Status: Status1NoteOn, Channel: channel, Data1: note, Data2: velocity}
}

// NewNoteOff builds a MIDI1ChannelVoice NoteOff message.
func NewNoteOff(group, channel, note, velocity uint8) MIDI1ChannelVoice {
	return MIDI1ChannelVoice{GroupNum: group, Status: Status1NoteOff, Channel: channel, Data1: note, Data2: velocity}
}
