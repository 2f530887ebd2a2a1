// Package transport implements the Network MIDI 2.0 UDP session protocol:
// a reliable, session-oriented protocol carrying UMP over UDP, with
// handshake, authentication, liveness, and retransmission. Duplicate UMP
// Data is dropped on receipt, so a peer's piggybacked retransmissions are
// harmless; outgoing datagrams carry one command each and never piggyback
// earlier UMP Data.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the 4-byte ASCII prefix ("MIDI") every datagram begins with.
var Magic = [4]byte{'M', 'I', 'D', 'I'}

// Code identifies a command within a datagram.
type Code uint8

const (
	CodeInvitation               Code = 0x01
	CodeInvitationWithAuth        Code = 0x02
	CodeInvitationWithUserAuth    Code = 0x03
	CodeInvitationAccepted        Code = 0x04
	CodeInvitationPending         Code = 0x05
	CodeInvitationAuthReply       Code = 0x06
	CodePing                      Code = 0x20
	CodePingReply                 Code = 0x21
	CodeRetransmitRequest         Code = 0x80
	CodeRetransmitError           Code = 0x81
	CodeSessionReset              Code = 0x82
	CodeSessionResetReply         Code = 0x83
	CodeNak                       Code = 0x84
	CodeBye                       Code = 0x85
	CodeByeReply                  Code = 0x86
	CodeUMPData                   Code = 0xFF
)

// ErrDatagramTooShort is returned when a datagram is missing the magic
// prefix or a command header is truncated.
var ErrDatagramTooShort = errors.New("transport: datagram too short")

// ErrBadMagic is returned when a datagram does not start with "MIDI".
var ErrBadMagic = errors.New("transport: bad magic")

// Command is one command within a datagram: an 8-bit code, a 16-bit
// command-specific field, and a payload whose length is always a multiple
// of 4 bytes. Commands that need to carry a sequence number (UMP Data) put
// it in Specific rather than the payload, the way the real Network MIDI
// 2.0 UDP transport does, so the payload itself stays word-aligned no
// matter what it carries.
type Command struct {
	Code     Code
	Specific uint16
	Payload  []byte // length must be a multiple of 4
}

// EncodeDatagram frames magic + a sequence of commands into one datagram.
func EncodeDatagram(cmds []Command) ([]byte, error) {
	out := make([]byte, 0, 4+16*len(cmds))
	out = append(out, Magic[:]...)

	for _, c := range cmds {
		if len(c.Payload)%4 != 0 {
			return nil, fmt.Errorf("transport: command 0x%02x payload length %d not a multiple of 4", c.Code, len(c.Payload))
		}
		lengthWords := len(c.Payload) / 4
		if lengthWords > 0xFF {
			return nil, fmt.Errorf("transport: command 0x%02x payload too long (%d words)", c.Code, lengthWords)
		}
		header := []byte{byte(c.Code), 0, 0, byte(lengthWords)}
		binary.BigEndian.PutUint16(header[1:3], c.Specific)
		out = append(out, header...)
		out = append(out, c.Payload...)
	}

	return out, nil
}

// DecodeDatagram parses a datagram into its commands. A command whose
// declared length runs past the end of the datagram is an error; there is
// no partial-command recovery since UDP datagrams are delivered whole or
// not at all.
func DecodeDatagram(data []byte) ([]Command, error) {
	if len(data) < 4 {
		return nil, ErrDatagramTooShort
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return nil, ErrBadMagic
	}

	var cmds []Command
	offset := 4

	for offset < len(data) {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated command header at offset %d", ErrDatagramTooShort, offset)
		}

		code := Code(data[offset])
		specific := binary.BigEndian.Uint16(data[offset+1 : offset+3])
		lengthWords := int(data[offset+3])
		payloadLen := lengthWords * 4
		offset += 4

		if offset+payloadLen > len(data) {
			return nil, fmt.Errorf("%w: command 0x%02x payload runs past datagram end", ErrDatagramTooShort, code)
		}

		payload := append([]byte(nil), data[offset:offset+payloadLen]...)
		offset += payloadLen

		cmds = append(cmds, Command{Code: code, Specific: specific, Payload: payload})
	}

	return cmds, nil
}

// umpDataPayload builds the payload for a CodeUMPData command: just the
// UMP words, big-endian per the wire format's default integer encoding.
// The sequence number travels in the command header's Specific field, not
// here, so this is always word-aligned.
func umpDataPayload(words []uint32) []byte {
	payload := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(payload[4*i:4*i+4], w)
	}
	return payload
}

// parseUMPDataPayload decodes a CodeUMPData payload back into UMP words.
func parseUMPDataPayload(payload []byte) ([]uint32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("transport: UMP Data payload not a multiple of 4")
	}

	words := make([]uint32, len(payload)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(payload[4*i : 4*i+4])
	}
	return words, nil
}

// retransmitRequestPayload builds the payload for a CodeRetransmitRequest
// command: the first missing sequence number and how many consecutive
// sequences starting there are being requested. Four bytes, always
// word-aligned, unlike an arbitrary list of individual sequence numbers.
func retransmitRequestPayload(first, count uint16) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], first)
	binary.BigEndian.PutUint16(payload[2:4], count)
	return payload
}

// parseRetransmitRequestPayload decodes a CodeRetransmitRequest payload.
func parseRetransmitRequestPayload(payload []byte) (first, count uint16, err error) {
	if len(payload) != 4 {
		return 0, 0, fmt.Errorf("transport: retransmit request payload must be 4 bytes, got %d", len(payload))
	}
	return binary.BigEndian.Uint16(payload[0:2]), binary.BigEndian.Uint16(payload[2:4]), nil
}

// Retransmit Error reason codes.
const (
	ReasonSequenceUnavailable uint16 = 0x0001
)

// retransmitErrorPayload builds the payload for a CodeRetransmitError
// command: a reason code and the sequence number that couldn't be
// satisfied. Four bytes, word-aligned.
func retransmitErrorPayload(reason, seq uint16) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], reason)
	binary.BigEndian.PutUint16(payload[2:4], seq)
	return payload
}

// parseRetransmitErrorPayload decodes a CodeRetransmitError payload.
func parseRetransmitErrorPayload(payload []byte) (reason, seq uint16, err error) {
	if len(payload) != 4 {
		return 0, 0, fmt.Errorf("transport: retransmit error payload must be 4 bytes, got %d", len(payload))
	}
	return binary.BigEndian.Uint16(payload[0:2]), binary.BigEndian.Uint16(payload[2:4]), nil
}
