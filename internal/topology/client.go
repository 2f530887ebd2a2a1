package topology

import (
	"context"
	"sort"
	"time"

	"github.com/kb9vty/ump2/internal/ump"
)

// QuiescenceTimeout is the spec-mandated wait after the last novel
// notification before a discovery run is considered complete.
const QuiescenceTimeout = 300 * time.Millisecond

// Discoverer runs the client side of topology discovery: send the
// requests, collect notifications until quiescence, assemble an
// Endpoint.
type Discoverer struct {
	send   SendFunc
	packets <-chan ump.Packet

	streams *ump.StreamReassembler

	endpoint     Endpoint
	pendingBlock map[uint8]*FunctionBlock
}

// NewDiscoverer builds a Discoverer that sends requests via send and
// reads the peer's UMP packet stream from packets (typically a
// transport.Session's or rawendpoint.Endpoint's Packets() channel).
func NewDiscoverer(send SendFunc, packets <-chan ump.Packet) *Discoverer {
	return &Discoverer{
		send:         send,
		packets:      packets,
		streams:      ump.NewStreamReassembler(),
		pendingBlock: make(map[uint8]*FunctionBlock),
	}
}

// Discover runs spec 4.4's client operation: send Endpoint Discovery and
// Function Block Discovery, then collect notifications until either ctx
// is cancelled or QuiescenceTimeout elapses since the last novel
// notification.
func (d *Discoverer) Discover(ctx context.Context) (Endpoint, error) {
	if err := d.send(endpointDiscoveryPacket(AllEndpointFilters)); err != nil {
		return Endpoint{}, err
	}
	if err := d.send(functionBlockDiscoveryPacket(AllFunctionBlocks, AllFunctionBlockFilters)); err != nil {
		return Endpoint{}, err
	}

	timer := time.NewTimer(QuiescenceTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.assemble(), ctx.Err()
		case <-timer.C:
			return d.assemble(), nil
		case pkt, ok := <-d.packets:
			if !ok {
				return d.assemble(), nil
			}
			if d.handlePacket(pkt) {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(QuiescenceTimeout)
			}
		}
	}
}

// handlePacket folds one received packet into the in-progress Endpoint
// and reports whether it was novel (and so should reset the quiescence
// timer).
func (d *Discoverer) handlePacket(pkt ump.Packet) bool {
	msg, ok := pkt.(ump.StreamMessage)
	if !ok {
		return false
	}

	switch msg.Status {
	case ump.StatusEndpointInfoNotification:
		payload, complete, _ := d.streams.Feed(msg)
		if !complete {
			return false
		}
		major, minor, midi1, midi2, jrTx, jrRx, _, err := decodeEndpointInfo(payload)
		if err != nil {
			return false
		}
		d.endpoint.UMPVersionMajor = major
		d.endpoint.UMPVersionMinor = minor
		d.endpoint.SupportsMIDI1 = midi1
		d.endpoint.SupportsMIDI2 = midi2
		d.endpoint.SupportsJRTx = jrTx
		d.endpoint.SupportsJRRx = jrRx
		return true

	case ump.StatusDeviceIdentityNotification:
		_, complete, _ := d.streams.Feed(msg)
		return complete

	case ump.StatusEndpointNameNotification:
		payload, complete, _ := d.streams.Feed(msg)
		if !complete {
			return false
		}
		d.endpoint.Name = trimNulString(payload)
		return true

	case ump.StatusProductInstanceIDNotify:
		payload, complete, _ := d.streams.Feed(msg)
		if !complete {
			return false
		}
		d.endpoint.ProductInstanceID = trimNulString(payload)
		return true

	case ump.StatusFunctionBlockInfoNotify:
		payload, complete, _ := d.streams.Feed(msg)
		if !complete {
			return false
		}
		fb, err := decodeFunctionBlockInfo(payload)
		if err != nil {
			return false
		}
		d.upsertBlock(fb.ID, func(b *FunctionBlock) {
			id := b.ID
			*b = fb
			b.ID = id
		})
		return true

	case ump.StatusFunctionBlockNameNotify:
		payload, complete, _ := d.streams.Feed(msg)
		if !complete {
			return false
		}
		id, name, err := decodeNameWithBlockID(payload)
		if err != nil {
			return false
		}
		d.upsertBlock(id, func(b *FunctionBlock) { b.Name = name })
		return true
	}

	return false
}

func (d *Discoverer) upsertBlock(id uint8, mutate func(*FunctionBlock)) {
	fb, ok := d.pendingBlock[id]
	if !ok {
		fb = &FunctionBlock{ID: id}
		d.pendingBlock[id] = fb
	}
	mutate(fb)
}

func (d *Discoverer) assemble() Endpoint {
	ep := d.endpoint
	for _, fb := range d.pendingBlock {
		ep.FunctionBlocks = append(ep.FunctionBlocks, *fb)
	}
	sort.Slice(ep.FunctionBlocks, func(i, j int) bool {
		return ep.FunctionBlocks[i].ID < ep.FunctionBlocks[j].ID
	})
	return ep
}
