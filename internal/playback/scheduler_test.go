package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9vty/ump2/internal/smf"
	"github.com/kb9vty/ump2/internal/ump"
)

func TestRunDispatchesInOrderAtScheduledTimes(t *testing.T) {
	sched := []smf.ScheduledPacket{
		{At: 0, Packet: ump.NewNoteOn(0, 0, 60, 100)},
		{At: 20 * time.Millisecond, Packet: ump.NewNoteOff(0, 0, 60, 0)},
		{At: 40 * time.Millisecond, Packet: ump.NewNoteOn(0, 0, 64, 100)},
	}

	var got []time.Time
	var packets []ump.Packet
	sink := func(p ump.Packet) error {
		got = append(got, time.Now())
		packets = append(packets, p)
		return nil
	}

	start := time.Now()
	stats, err := Run(context.Background(), sink, sched, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 0, stats.LateEvents)
	require.Len(t, got, 3)

	for i, ev := range sched {
		elapsed := got[i].Sub(start)
		assert.GreaterOrEqual(t, elapsed, ev.At)
	}
}

func TestRunNeverSendsEarly(t *testing.T) {
	sched := []smf.ScheduledPacket{
		{At: 30 * time.Millisecond, Packet: ump.NewNoteOn(0, 0, 60, 100)},
	}

	start := time.Now()
	var dispatchedAt time.Duration
	sink := func(p ump.Packet) error {
		dispatchedAt = time.Since(start)
		return nil
	}

	_, err := Run(context.Background(), sink, sched, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dispatchedAt, 30*time.Millisecond)
}

func TestRunCancellationStopsBeforeFurtherEvents(t *testing.T) {
	sched := []smf.ScheduledPacket{
		{At: 0, Packet: ump.NewNoteOn(0, 0, 60, 100)},
		{At: time.Hour, Packet: ump.NewNoteOff(0, 0, 60, 0)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	var sent int
	sink := func(p ump.Packet) error {
		sent++
		cancel()
		return nil
	}

	stats, err := Run(ctx, sink, sched, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, stats.Sent)
}

func TestRunPropagatesSinkError(t *testing.T) {
	sched := []smf.ScheduledPacket{{At: 0, Packet: ump.NewNoteOn(0, 0, 60, 100)}}
	sink := func(p ump.Packet) error { return errSinkFailed }

	_, err := Run(context.Background(), sink, sched, nil)
	require.ErrorIs(t, err, errSinkFailed)
}

var errSinkFailed = errors.New("sink failed")
