package ump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSysEx7CompleteScenario(t *testing.T) {
	// F0 7E 7F 06 01 F7 -> payload {7E,7F,06,01}
	msg := SysEx7{GroupNum: 0, Status: SysExComplete, Data: []byte{0x7E, 0x7F, 0x06, 0x01}}
	words := msg.Words()
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x30047E7F), words[0])

	decoded, consumed, err := DecodePacket(words)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, msg, decoded)
}

func TestSysExReassemblerOutOfOrder(t *testing.T) {
	r := NewSysExReassembler()
	_, ok, err := r.Feed7(SysEx7{Status: SysExContinue, Data: []byte{1, 2}})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrReassemblyOutOfOrder)
}

func TestSysExReassemblyMatchesComplete(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		group := uint8(rapid.IntRange(0, 15).Draw(t, "group"))
		full := rapid.SliceOfN(rapid.Byte(), 0, 30).Draw(t, "full")

		r := NewSysExReassembler()
		var got []byte
		var gotOK bool

		if len(full) <= 6 {
			payload, ok, err := r.Feed7(SysEx7{GroupNum: group, Status: SysExComplete, Data: full})
			require.NoError(t, err)
			got, gotOK = payload, ok
		} else {
			for offset := 0; offset < len(full); offset += 6 {
				end := offset + 6
				if end > len(full) {
					end = len(full)
				}

				var status SysExStatus
				switch {
				case offset == 0:
					status = SysExStart
				case end == len(full):
					status = SysExEnd
				default:
					status = SysExContinue
				}

				payload, ok, err := r.Feed7(SysEx7{GroupNum: group, Status: status, Data: full[offset:end]})
				require.NoError(t, err)
				if ok {
					got, gotOK = payload, ok
				}
			}
		}

		require.True(t, gotOK)
		assert.Equal(t, full, got)
	})
}
