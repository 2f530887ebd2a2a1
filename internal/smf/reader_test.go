package smf

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id string, body []byte) []byte {
	var out bytes.Buffer
	out.WriteString(id)
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)))
	out.Write(length[:])
	out.Write(body)
	return out.Bytes()
}

// buildSMF assembles a minimal format-1, 2-track file at 480 ticks per
// quarter note: track 0 carries a tempo map, track 1 carries two notes.
func buildSMF(t *testing.T) []byte {
	t.Helper()

	mthd := chunk("MThd", []byte{
		0x00, 0x01, // format 1
		0x00, 0x02, // 2 tracks
		0x01, 0xE0, // 480 ticks/quarter
	})

	track0 := chunk("MTrk", []byte{
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20, // tempo 500000 @ tick 0
		0x83, 0x60, 0xFF, 0x2F, 0x00, // end of track @ tick 480
	})

	track1 := chunk("MTrk", []byte{
		0x00, 0x90, 0x40, 0x64, // note on 64 vel 100 @ tick 0
		0x83, 0x60, 0x80, 0x40, 0x00, // note off @ tick 480
		0x00, 0xFF, 0x2F, 0x00, // end of track
	})

	var out bytes.Buffer
	out.Write(mthd)
	out.Write(track0)
	out.Write(track1)
	return out.Bytes()
}

func TestReadFileParsesHeaderAndTracks(t *testing.T) {
	data := buildSMF(t)
	f, err := ReadFile(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, Format1, f.Format)
	assert.Equal(t, uint16(480), f.TicksPerQuarterNote())
	assert.False(t, f.IsSMPTE())
	require.Len(t, f.Tracks, 2)

	require.Len(t, f.Tracks[0], 2)
	usPerQuarter, ok := f.Tracks[0][0].Tempo()
	require.True(t, ok)
	assert.Equal(t, uint32(500000), usPerQuarter)
	assert.True(t, f.Tracks[0][1].IsEndOfTrack())

	require.Len(t, f.Tracks[1], 3)
	noteOn := f.Tracks[1][0]
	assert.Equal(t, KindChannelVoice, noteOn.Kind)
	assert.Equal(t, uint8(0x90), noteOn.Status)
	assert.Equal(t, uint8(0x40), noteOn.Data1)
	assert.Equal(t, uint8(0x64), noteOn.Data2)
}

func TestReadFileRejectsNonSMF(t *testing.T) {
	_, err := ReadFile(bytes.NewReader([]byte("not a midi file at all")))
	assert.ErrorIs(t, err, ErrNotSMF)
}

func TestReadFileRunningStatus(t *testing.T) {
	mthd := chunk("MThd", []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x60})
	track := chunk("MTrk", []byte{
		0x00, 0x90, 0x3C, 0x64, // note on, explicit status
		0x10, 0x3E, 0x64, // note on, running status, different note
		0x10, 0x3C, 0x00, // note off via running status + velocity 0
		0x00, 0xFF, 0x2F, 0x00,
	})

	var data bytes.Buffer
	data.Write(mthd)
	data.Write(track)

	f, err := ReadFile(bytes.NewReader(data.Bytes()))
	require.NoError(t, err)
	require.Len(t, f.Tracks, 1)
	require.Len(t, f.Tracks[0], 4)

	assert.Equal(t, uint8(0x90), f.Tracks[0][1].Status)
	assert.Equal(t, uint8(0x3E), f.Tracks[0][1].Data1)
	assert.Equal(t, uint8(0x90), f.Tracks[0][2].Status)
	assert.Equal(t, uint8(0x3C), f.Tracks[0][2].Data1)
}

func TestMergeTracksOrdersByAbsoluteTicksWithTrackTieBreak(t *testing.T) {
	tracks := [][]Event{
		{{DeltaTicks: 0, Kind: KindMeta, MetaType: MetaMarker}, {DeltaTicks: 10, Kind: KindMeta, MetaType: MetaMarker}},
		{{DeltaTicks: 0, Kind: KindMeta, MetaType: MetaText}},
	}
	merged := MergeTracks(tracks)
	require.Len(t, merged, 3)

	// Both track 0's first event and track 1's only event land at tick 0;
	// track 0 must come first.
	assert.Equal(t, uint64(0), merged[0].AbsoluteTicks)
	assert.Equal(t, 0, merged[0].TrackIndex)
	assert.Equal(t, uint64(0), merged[1].AbsoluteTicks)
	assert.Equal(t, 1, merged[1].TrackIndex)
	assert.Equal(t, uint64(10), merged[2].AbsoluteTicks)
}

func TestTempoMapConvertsTicksUsingPiecewiseTempoChanges(t *testing.T) {
	tracks := [][]Event{{
		{DeltaTicks: 0, Kind: KindMeta, MetaType: MetaSetTempo, MetaData: []byte{0x07, 0xA1, 0x20}}, // 500000 us/qtr
		{DeltaTicks: 480, Kind: KindMeta, MetaType: MetaSetTempo, MetaData: []byte{0x03, 0xD0, 0x90}}, // 250000 us/qtr
		{DeltaTicks: 480, Kind: KindMeta, MetaType: MetaEndOfTrack},
	}}
	merged := MergeTracks(tracks)
	tm := NewTempoMap(480, TempoChanges(merged))

	assert.Equal(t, time.Duration(0), tm.ToDuration(0))
	assert.Equal(t, 500*time.Millisecond, tm.ToDuration(480))
	assert.Equal(t, 500*time.Millisecond+250*time.Millisecond, tm.ToDuration(960))
}

func TestProjectEmitsNoteOnAndNoteOffOnGroup(t *testing.T) {
	f, err := ReadFile(bytes.NewReader(buildSMF(t)))
	require.NoError(t, err)

	sched, err := Project(f, 3)
	require.NoError(t, err)
	require.Len(t, sched, 2)

	noteOn, ok := sched[0].Packet.(interface{ Group() uint8 })
	require.True(t, ok)
	assert.Equal(t, uint8(3), noteOn.Group())
	assert.Equal(t, time.Duration(0), sched[0].At)
	assert.Equal(t, 500*time.Millisecond, sched[1].At)
}

func TestProjectTrackRejectsOutOfRange(t *testing.T) {
	f, err := ReadFile(bytes.NewReader(buildSMF(t)))
	require.NoError(t, err)

	_, err = ProjectTrack(f, 5, 0)
	assert.Error(t, err)
}

func TestProjectSysExSplitsAcrossPackets(t *testing.T) {
	tracks := [][]Event{{
		{DeltaTicks: 0, Kind: KindSysEx, SysExData: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}},
	}}
	f := &File{Format: Format0, Division: 480, Tracks: tracks}

	sched, err := Project(f, 0)
	require.NoError(t, err)
	require.Len(t, sched, 2)
}
