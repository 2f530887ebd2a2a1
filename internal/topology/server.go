package topology

import (
	"fmt"

	"github.com/kb9vty/ump2/internal/config"
	"github.com/kb9vty/ump2/internal/ump"
)

// SendFunc transmits one UMP packet to the peer. internal/transport's
// Session.SendPacket and internal/rawendpoint's Endpoint.Send both already
// have this shape, so either can be passed directly as a SendFunc value.
type SendFunc func(ump.Packet) error

// Responder answers discovery requests against a statically configured
// Endpoint, per spec 4.4: "given a statically configured Topology,
// respond to incoming discovery requests by emitting the appropriate
// notifications, one-shot Complete packets where payloads fit in 12
// bytes [14, in this wire format], otherwise Start/Continue/End chains."
type Responder struct {
	endpoint Endpoint
	send     SendFunc
}

// NewResponder builds a Responder from configured topology. It returns an
// error if any configured Function Block violates the group-addressing
// invariant (spec 3: first_group + num_groups <= 16).
func NewResponder(cfg config.TopologyConfig, send SendFunc) (*Responder, error) {
	ep := EndpointFromConfig(cfg)
	for _, fb := range ep.FunctionBlocks {
		if err := fb.Validate(); err != nil {
			return nil, err
		}
	}
	return &Responder{endpoint: ep, send: send}, nil
}

// EndpointFromConfig converts the on-disk topology config into the
// Endpoint a Responder serves.
func EndpointFromConfig(cfg config.TopologyConfig) Endpoint {
	ep := Endpoint{
		Name:              cfg.Name,
		ProductInstanceID: cfg.ProductInstanceID,
		UMPVersionMajor:   cfg.UMPVersionMajor,
		UMPVersionMinor:   cfg.UMPVersionMinor,
		SupportsMIDI1:     cfg.SupportsMIDI1,
		SupportsMIDI2:     cfg.SupportsMIDI2,
		SupportsJRTx:      cfg.SupportsJRTx,
		SupportsJRRx:      cfg.SupportsJRRx,
	}

	for _, fb := range cfg.FunctionBlocks {
		ep.FunctionBlocks = append(ep.FunctionBlocks, FunctionBlock{
			ID:         fb.ID,
			Name:       fb.Name,
			Direction:  directionFromString(fb.Direction),
			UIHint:     fb.UIHint,
			FirstGroup: fb.FirstGroup,
			NumGroups:  fb.NumGroups,
			MIDI1:      midi1ModeFromString(fb.MIDI1Mode),
			IsActive:   fb.IsActive,
		})
	}

	return ep
}

func directionFromString(s string) Direction {
	switch s {
	case "out":
		return DirectionOutput
	case "bidir":
		return DirectionBidirectional
	default:
		return DirectionInput
	}
}

func midi1ModeFromString(s string) MIDI1Mode {
	switch s {
	case "midi1_only":
		return MIDI1ModeRestricted
	case "midi1_31250bps":
		return MIDI1ModeRestricted31250bps
	default:
		return MIDI1ModeNone
	}
}

// HandlePacket inspects an incoming UMP packet and, if it's a discovery
// request this Responder understands, emits the matching notifications.
// Non-Stream packets and Stream messages with an unrecognized status are
// silently ignored: a Responder shares an Endpoint's packet stream with
// ordinary MIDI traffic.
func (r *Responder) HandlePacket(pkt ump.Packet) error {
	msg, ok := pkt.(ump.StreamMessage)
	if !ok {
		return nil
	}

	switch msg.Status {
	case ump.StatusEndpointDiscovery:
		return r.handleEndpointDiscovery(msg)
	case ump.StatusFunctionBlockDiscovery:
		return r.handleFunctionBlockDiscovery(msg)
	}
	return nil
}

func (r *Responder) handleEndpointDiscovery(msg ump.StreamMessage) error {
	if len(msg.Data) < 1 {
		return fmt.Errorf("topology: endpoint discovery request missing filter byte")
	}
	filter := EndpointDiscoveryFilter(msg.Data[0])

	if filter&FilterEndpointInfo != 0 {
		if err := r.send(ump.StreamMessage{Format: ump.StreamComplete, Status: ump.StatusEndpointInfoNotification, Data: padTo14(endpointInfoPayload(r.endpoint))}); err != nil {
			return err
		}
	}
	if filter&FilterDeviceIdentity != 0 {
		if err := r.send(ump.StreamMessage{Format: ump.StreamComplete, Status: ump.StatusDeviceIdentityNotification, Data: padTo14(deviceIdentityPayload(deviceIdentity{}))}); err != nil {
			return err
		}
	}
	if filter&FilterEndpointName != 0 {
		if err := r.sendChain(ump.StatusEndpointNameNotification, []byte(r.endpoint.Name)); err != nil {
			return err
		}
	}
	if filter&FilterProductInstanceID != 0 {
		if err := r.sendChain(ump.StatusProductInstanceIDNotify, []byte(r.endpoint.ProductInstanceID)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Responder) handleFunctionBlockDiscovery(msg ump.StreamMessage) error {
	if len(msg.Data) < 2 {
		return fmt.Errorf("topology: function block discovery request missing target/filter bytes")
	}
	target := msg.Data[0]
	filter := FunctionBlockDiscoveryFilter(msg.Data[1])

	for _, fb := range r.endpoint.FunctionBlocks {
		if target != AllFunctionBlocks && target != fb.ID {
			continue
		}
		if filter&FilterFunctionBlockInfo != 0 {
			if err := r.send(ump.StreamMessage{Format: ump.StreamComplete, Status: ump.StatusFunctionBlockInfoNotify, Data: padTo14(functionBlockInfoPayload(fb))}); err != nil {
				return err
			}
		}
		if filter&FilterFunctionBlockName != 0 {
			for _, m := range splitNameWithBlockID(ump.StatusFunctionBlockNameNotify, fb.ID, fb.Name) {
				if err := r.send(m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Responder) sendChain(status uint16, payload []byte) error {
	for _, m := range ump.SplitStreamPayload(status, payload) {
		if err := r.send(m); err != nil {
			return err
		}
	}
	return nil
}
