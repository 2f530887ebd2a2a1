package ump

// MIDI 2.0 Channel Voice status nibbles (bits 23-20 of word 0). These
// largely mirror the MIDI 1.0 statuses but some carry different operand
// shapes (wider velocity, per-note controllers, attribute data).
const (
	Status2NoteOff           uint8 = 0x8
	Status2NoteOn            uint8 = 0x9
	Status2PolyPressure      uint8 = 0xA
	Status2RegisteredPerNote uint8 = 0x0
	Status2AssignPerNote     uint8 = 0x1
	Status2PerNotePitchBend  uint8 = 0x6
	Status2ControlChange     uint8 = 0xB
	Status2RegisteredControl uint8 = 0x2
	Status2AssignableControl uint8 = 0x3
	Status2RelRegisteredCtl  uint8 = 0x4
	Status2RelAssignableCtl  uint8 = 0x5
	Status2ProgramChange     uint8 = 0xC
	Status2ChannelPressure   uint8 = 0xD
	Status2PitchBend         uint8 = 0xE
	Status2PerNoteManagement uint8 = 0xF
)

// MIDI2ChannelVoice is a two-word MT=0x4 packet. The decoder exposes raw
// field extraction only (Byte3/Byte4/Data) rather than interpreting
// semantics per status, matching the spec's "decoder does not interpret
// semantics beyond field extraction" rule: callers that need NoteOn
// velocity vs. PitchBend data read Data according to the Status they
// observe.
//
// Word layout: word0 = MT(4)|Group(4)|Status(4)|Channel(4)|Byte3(8)|Byte4(8);
// word1 = Data(32) (velocity/attribute-data, controller value, pitch bend,
// per-note detail, depending on Status).
type MIDI2ChannelVoice struct {
	GroupNum uint8
	Status   uint8
	Channel  uint8
	Byte3    uint8 // note number / controller index / program number / per-note index
	Byte4    uint8 // attribute type / bank-valid flag / reserved, depending on Status
	Data     uint32
}

func decodeMIDI2ChannelVoice(words []uint32) MIDI2ChannelVoice {
	word0 := words[0]
	return MIDI2ChannelVoice{
		GroupNum: uint8((word0 >> 24) & 0xF),
		Status:   uint8((word0 >> 20) & 0xF),
		Channel:  uint8((word0 >> 16) & 0xF),
		Byte3:    uint8((word0 >> 8) & 0xFF),
		Byte4:    uint8(word0 & 0xFF),
		Data:     words[1],
	}
}

func (m MIDI2ChannelVoice) MessageType() MessageType { return MTMIDI2ChannelV }
func (m MIDI2ChannelVoice) Group() uint8             { return m.GroupNum }

func (m MIDI2ChannelVoice) Words() []uint32 {
	word0 := uint32(MTMIDI2ChannelV)<<28 | uint32(m.GroupNum&0xF)<<24 |
		uint32(m.Status&0xF)<<20 | uint32(m.Channel&0xF)<<16 |
		uint32(m.Byte3)<<8 | uint32(m.Byte4)
	return []uint32{word0, m.Data}
}

// Velocity16 returns the upper 16 bits of Data, the 16-bit velocity field
// carried by NoteOn/NoteOff.
func (m MIDI2ChannelVoice) Velocity16() uint16 { return uint16(m.Data >> 16) }

// AttributeData returns the lower 16 bits of Data, the per-note attribute
// data field carried alongside NoteOn/NoteOff (its meaning is governed by
// Byte4, the attribute type).
func (m MIDI2ChannelVoice) AttributeData() uint16 { return uint16(m.Data) }

// NewNoteOn2 builds a MIDI2ChannelVoice NoteOn with a 16-bit velocity and no
// per-note attribute.
func NewNoteOn2(group, channel, note uint8, velocity16 uint16) MIDI2ChannelVoice {
	return MIDI2ChannelVoice{
		GroupNum: group,
		Status:   Status2NoteOn,
		Channel:  channel,
		Byte3:    note,
		Data:     uint32(velocity16) << 16,
	}
}
