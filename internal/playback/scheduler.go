// Package playback drives a wall-clock scheduler over a pre-projected
// sequence of UMP packets, the output of internal/smf's SMF-to-UMP
// projection.
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9vty/ump2/internal/logx"
	"github.com/kb9vty/ump2/internal/smf"
	"github.com/kb9vty/ump2/internal/ump"
)

// Sink is the packet-dispatch side of playback: the same shape as
// transport.Session.SendPacket and rawendpoint.Endpoint.Send, so either
// can be handed to Run directly.
type Sink func(ump.Packet) error

// Stats summarizes one playback run.
type Stats struct {
	Sent       int
	LateEvents int // events reached more than lateTolerance after their scheduled time
}

// lateTolerance is how far past its scheduled time an event may be reached
// before it counts as late: an event due at offset 0 is always reached a
// few nanoseconds after Run starts, and that alone does not make it late.
const lateTolerance = time.Millisecond

// Run dispatches sched in order, sleeping until each event's scheduled
// wall-clock offset (from the moment Run is called) before sending it.
// It never sends an event early. Lateness (the sink or the scheduler
// running behind) is tolerated without reordering or catching up by
// dropping events. ctx cancellation takes effect at the next wakeup and
// aborts before sending any further events.
//
// sched must already be sorted by At; smf.Project and smf.ProjectTrack
// guarantee this.
func Run(ctx context.Context, sink Sink, sched []smf.ScheduledPacket, logger *log.Logger) (Stats, error) {
	if logger == nil {
		logger = logx.Discard()
	}

	var stats Stats
	start := time.Now()

	for i, ev := range sched {
		wake := start.Add(ev.At)
		if d := time.Until(wake); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return stats, ctx.Err()
			case <-timer.C:
			}
		} else if d < -lateTolerance {
			stats.LateEvents++
		}

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if err := sink(ev.Packet); err != nil {
			return stats, fmt.Errorf("playback: sending event %d/%d at %s: %w", i, len(sched), ev.At, err)
		}
		stats.Sent++
		logger.Debug("sent event", "index", i, "at", ev.At, "mt", ev.Packet.MessageType())
	}

	return stats, nil
}
