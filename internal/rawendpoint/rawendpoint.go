// Package rawendpoint bridges a bidirectional byte channel — the Linux
// ALSA rawmidi UMP character device, or anything else that delivers UMP
// words aligned to 32 bits — to a stream of decoded ump.Packet values.
package rawendpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/kb9vty/ump2/internal/logx"
	"github.com/kb9vty/ump2/internal/ump"
)

// Device is the bidirectional byte channel a raw endpoint wraps: a kernel
// character device, a pty, a test pipe, anything that reads and writes
// whole bytes. It is the "external collaborator" the spec treats as given.
type Device interface {
	io.Reader
	io.Writer
	io.Closer
}

// Endpoint reads word-aligned UMP bytes from a Device, decodes them into
// packets, and serializes outgoing packets back into whole-word writes. A
// short read is retained across calls; a packet is never split across
// writes smaller than its word count.
type Endpoint struct {
	dev       Device
	order     binary.ByteOrder
	log       *log.Logger
	packets   chan ump.Packet
	diagnostics chan error
	closeOnce chan struct{}
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger overrides the default discard logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Endpoint) { e.log = l }
}

// WithByteOrder overrides the default native byte order. The spec calls
// out that a raw device's word order is platform-defined; Linux ALSA's UMP
// character device is CPU-endian, which on every architecture Go ships for
// today is little-endian, so that is the default.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(e *Endpoint) { e.order = order }
}

// New wraps dev as a raw UMP endpoint. Packets() and Diagnostics() are
// ready to receive from immediately; call Run to start the read loop.
func New(dev Device, opts ...Option) *Endpoint {
	e := &Endpoint{
		dev:         dev,
		order:       binary.LittleEndian,
		log:         logx.Discard(),
		packets:     make(chan ump.Packet, 64),
		diagnostics: make(chan error, 16),
		closeOnce:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Packets is the channel of successfully decoded packets, in the order
// they were read from the device.
func (e *Endpoint) Packets() <-chan ump.Packet { return e.packets }

// Diagnostics carries non-fatal per-packet codec errors: a single bad
// packet does not tear down the endpoint.
func (e *Endpoint) Diagnostics() <-chan error { return e.diagnostics }

// Run reads from the device until ctx is cancelled or the device returns
// an error, decoding whole UMP packets and publishing them on Packets().
// It closes Packets() and Diagnostics() on return.
func (e *Endpoint) Run(ctx context.Context) error {
	defer close(e.packets)
	defer close(e.diagnostics)

	readDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = e.dev.Close()
	}()
	defer close(readDone)

	var pendingBytes []byte
	var wordBuf []uint32
	buf := make([]byte, 4096)

	for {
		n, err := e.dev.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("rawendpoint: read: %w", err)
		}

		pendingBytes = append(pendingBytes, buf[:n]...)

		nWords := len(pendingBytes) / 4
		for i := 0; i < nWords; i++ {
			wordBuf = append(wordBuf, e.order.Uint32(pendingBytes[i*4:i*4+4]))
		}
		pendingBytes = append([]byte(nil), pendingBytes[nWords*4:]...)

		for len(wordBuf) > 0 {
			pkt, consumed, err := ump.DecodePacket(wordBuf)
			if errors.Is(err, ump.ErrTruncated) {
				break
			}
			if err != nil {
				e.log.Warn("codec error, dropping one word", "err", err)
				select {
				case e.diagnostics <- err:
				default:
				}
				wordBuf = wordBuf[1:]
				continue
			}

			select {
			case e.packets <- pkt:
			case <-ctx.Done():
				return ctx.Err()
			}
			wordBuf = wordBuf[consumed:]
		}
	}
}

// Send serializes p to words in the endpoint's byte order and writes them
// in a single Write call, so the device never sees a packet split across
// writes.
func (e *Endpoint) Send(p ump.Packet) error {
	words := p.Words()
	out := make([]byte, 4*len(words))
	for i, w := range words {
		e.order.PutUint32(out[i*4:i*4+4], w)
	}

	n, err := e.dev.Write(out)
	if err != nil {
		return fmt.Errorf("rawendpoint: write: %w", err)
	}
	if n != len(out) {
		return fmt.Errorf("rawendpoint: short write: wrote %d of %d bytes", n, len(out))
	}
	return nil
}

// Close closes the underlying device.
func (e *Endpoint) Close() error {
	return e.dev.Close()
}
