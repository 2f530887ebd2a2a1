package ump

// Utility status nibbles (MT=0x0). Utility messages are group-less: bits
// 23-16 of word 0 are reserved rather than carrying a group.
const (
	UtilityNOOP         uint8 = 0x0
	UtilityJRClock      uint8 = 0x1
	UtilityJRTimestamp  uint8 = 0x2
)

// Utility is a one-word MT=0x0 packet: NOOP, JR Clock, or JR Timestamp.
type Utility struct {
	Status uint8  // one of UtilityNOOP/UtilityJRClock/UtilityJRTimestamp
	Data   uint16 // sender clock time, for JR Clock/JR Timestamp; 0 for NOOP
}

func decodeUtility(word uint32) Utility {
	return Utility{
		Status: uint8((word >> 24) & 0xF),
		Data:   uint16(word & 0xFFFF),
	}
}

func (u Utility) MessageType() MessageType { return MTUtility }

func (u Utility) Words() []uint32 {
	word := uint32(MTUtility)<<28 | uint32(u.Status&0xF)<<24 | uint32(u.Data)
	return []uint32{word}
}

// System Common / System Real Time statuses (MT=0x1), carried in bits 23-16.
const (
	SystemMTCQuarterFrame uint8 = 0xF1
	SystemSongPosition    uint8 = 0xF2
	SystemSongSelect      uint8 = 0xF3
	SystemTuneRequest     uint8 = 0xF6
	SystemTimingClock     uint8 = 0xF8
	SystemStart           uint8 = 0xFA
	SystemContinue        uint8 = 0xFB
	SystemStop            uint8 = 0xFC
	SystemActiveSensing   uint8 = 0xFE
	SystemReset           uint8 = 0xFF
)

// SystemMessage is a one-word MT=0x1 packet carrying a System Common or
// System Real Time status.
type SystemMessage struct {
	GroupNum uint8
	Status   uint8
	Data1    uint8
	Data2    uint8
}

func decodeSystemMessage(word uint32) SystemMessage {
	return SystemMessage{
		GroupNum: uint8((word >> 24) & 0xF),
		Status:   uint8((word >> 16) & 0xFF),
		Data1:    uint8((word >> 8) & 0xFF),
		Data2:    uint8(word & 0xFF),
	}
}

func (s SystemMessage) MessageType() MessageType { return MTSystemCommon }
func (s SystemMessage) Group() uint8             { return s.GroupNum }

func (s SystemMessage) Words() []uint32 {
	word := uint32(MTSystemCommon)<<28 | uint32(s.GroupNum&0xF)<<24 |
		uint32(s.Status)<<16 | uint32(s.Data1)<<8 | uint32(s.Data2)
	return []uint32{word}
}
