package rawendpoint

import (
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9vty/ump2/internal/ump"
)

// pipeDevice adapts an io.ReadWriteCloser pair to the Device interface for
// tests that don't need a real pty.
type pipeDevice struct {
	io.ReadWriter
}

func (p pipeDevice) Close() error { return nil }

func TestSendThenReceiveOverPty(t *testing.T) {
	// A pty pair stands in for the kernel character device: both ends are
	// a word-aligned bidirectional byte stream, the same shape the spec
	// describes for the Linux UMP rawmidi device. A new pty starts in
	// canonical mode, which holds input back until a newline and treats
	// 0x7F as an erase character, so the slave side is put in raw mode.
	master, slave, err := pty.Open()
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	rawSlave, err := term.Open(slave.Name(), term.RawMode)
	require.NoError(t, err)
	defer rawSlave.Close()

	masterEndpoint := New(master, WithByteOrder(binary.LittleEndian))
	slaveEndpoint := New(rawSlave, WithByteOrder(binary.LittleEndian))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = slaveEndpoint.Run(ctx) }()

	noteOn := ump.NewNoteOn(9, 0, 0x40, 0x7F)
	require.NoError(t, masterEndpoint.Send(noteOn))

	select {
	case pkt := <-slaveEndpoint.Packets():
		assert.Equal(t, noteOn, pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet over pty")
	}
}

func TestShortReadsAreBufferedAcrossCalls(t *testing.T) {
	r, w := io.Pipe()
	dev := pipeDevice{struct {
		io.Reader
		io.Writer
	}{r, w}}

	ep := New(dev, WithByteOrder(binary.BigEndian))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = ep.Run(ctx) }()

	noteOn := ump.NewNoteOn(1, 2, 60, 100)
	words := noteOn.Words()
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, words[0])

	go func() {
		// Dribble the 4 bytes out one at a time to exercise short-read
		// buffering.
		for _, b := range raw {
			_, _ = w.Write([]byte{b})
		}
	}()

	select {
	case pkt := <-ep.Packets():
		assert.Equal(t, noteOn, pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dribbled packet")
	}
}

func TestReservedMessageTypePassesThroughAsOpaque(t *testing.T) {
	r, w := io.Pipe()
	dev := pipeDevice{struct {
		io.Reader
		io.Writer
	}{r, w}}

	ep := New(dev, WithByteOrder(binary.BigEndian))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = ep.Run(ctx) }()

	// MT=0x7 is reserved and one word wide per the ADDED sizing table.
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, 0x71234567)

	go func() { _, _ = w.Write(raw) }()

	select {
	case pkt := <-ep.Packets():
		opaque, ok := pkt.(ump.Opaque)
		require.True(t, ok)
		assert.Equal(t, ump.MessageType(0x7), opaque.MT)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reserved-MT packet")
	}
}
