package topology

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9vty/ump2/internal/config"
	"github.com/kb9vty/ump2/internal/ump"
)

// wireServerToClient pipes a Responder's outgoing packets straight into a
// Discoverer's incoming channel, and the Discoverer's requests straight
// into the Responder, synchronously enough for a deterministic test while
// still exercising the real chain-framing and reassembly code.
func wireServerToClient(t *testing.T, cfg config.TopologyConfig) (*Discoverer, func()) {
	t.Helper()

	toClient := make(chan ump.Packet, 256)
	toServer := make(chan ump.Packet, 256)

	responder, err := NewResponder(cfg, func(p ump.Packet) error {
		toClient <- p
		return nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case p := <-toServer:
				_ = responder.HandlePacket(p)
			case <-done:
				return
			}
		}
	}()

	discoverer := NewDiscoverer(func(p ump.Packet) error {
		toServer <- p
		return nil
	}, toClient)

	return discoverer, func() { close(done) }
}

func testTopologyConfig() config.TopologyConfig {
	return config.TopologyConfig{
		Name:              "Test Synth",
		ProductInstanceID: "TS-0001",
		UMPVersionMajor:   1,
		UMPVersionMinor:   1,
		SupportsMIDI1:     true,
		SupportsMIDI2:     true,
		SupportsJRTx:      false,
		SupportsJRRx:      false,
		FunctionBlocks: []config.FunctionBlockConfig{
			{ID: 0, Name: "Synth Engine A Which Has A Genuinely Long Name For Chain Framing", Direction: "bidir", FirstGroup: 0, NumGroups: 1, IsActive: true},
			{ID: 1, Name: "Drum Kit", Direction: "out", FirstGroup: 1, NumGroups: 1, MIDI1Mode: "midi1_only", IsActive: true},
		},
	}
}

func TestDiscoverAssemblesEndpointAndFunctionBlocks(t *testing.T) {
	cfg := testTopologyConfig()
	discoverer, stop := wireServerToClient(t, cfg)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ep, err := discoverer.Discover(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Test Synth", ep.Name)
	assert.Equal(t, "TS-0001", ep.ProductInstanceID)
	assert.True(t, ep.SupportsMIDI1)
	assert.True(t, ep.SupportsMIDI2)
	require.Len(t, ep.FunctionBlocks, 2)
	assert.Equal(t, uint8(0), ep.FunctionBlocks[0].ID)
	assert.Equal(t, "Synth Engine A Which Has A Genuinely Long Name For Chain Framing", ep.FunctionBlocks[0].Name)
	assert.Equal(t, DirectionBidirectional, ep.FunctionBlocks[0].Direction)
	assert.Equal(t, "Drum Kit", ep.FunctionBlocks[1].Name)
	assert.Equal(t, MIDI1ModeRestricted, ep.FunctionBlocks[1].MIDI1)
}

func TestNewResponderRejectsFunctionBlockExceedingGroupSpace(t *testing.T) {
	cfg := testTopologyConfig()
	cfg.FunctionBlocks = []config.FunctionBlockConfig{
		{ID: 0, Name: "Overflow", Direction: "bidir", FirstGroup: 10, NumGroups: 10},
	}

	_, err := NewResponder(cfg, func(ump.Packet) error { return nil })
	assert.Error(t, err)
}

func TestSplitNameWithBlockIDRoundTripsThroughReassembler(t *testing.T) {
	longName := "A function block name longer than fourteen bytes so it chains"
	msgs := splitNameWithBlockID(ump.StatusFunctionBlockNameNotify, 3, longName)
	require.Greater(t, len(msgs), 1)

	r := ump.NewStreamReassembler()
	var payload []byte
	for _, m := range msgs {
		p, ok, err := r.Feed(m)
		require.NoError(t, err)
		if ok {
			payload = p
		}
	}

	id, name, err := decodeNameWithBlockID(payload)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), id)
	assert.Equal(t, longName, name)
}
