// Package wire implements the binary frame format used between the
// matching engine's fanout and the broadcaster, and for the broadcaster's
// privileged-uplink handshake. It stands in for the generated protobuf
// WsMessage envelope the original service used; protobuf code generation
// is out of scope here, so the frame is hand-rolled as an encoding/binary
// fixed-width header followed by a variable-length tail.
package wire

import (
	"encoding/binary"
	"errors"
)

// Op identifies what a WsMessage asks the receiver to do.
type Op uint8

const (
	OpHandshake Op = iota // privileged uplink authentication
	OpPost                // push a fresh price/book snapshot
)

var (
	ErrFrameTooShort = errors.New("frame too short for header")
	ErrFrameTruncated = errors.New("frame truncated before declared length")
)

const headerLen = 1 + 2 + 4 // op(1) + channelLen(2) + paramsLen(4)

// WsMessage is the binary envelope exchanged for handshake/post traffic.
// Channel identifies what the payload is about (e.g. "order_service" for a
// handshake, a market's "price_update:{id}" channel for a post); Params
// carries the operation-specific payload (the shared secret for a
// handshake, a MessagePack-encoded price pair for a post).
type WsMessage struct {
	Op      Op
	Channel string
	Params  []byte
}

// Encode serializes m as op(1) | channelLen(2) | paramsLen(4) | channel | params.
func (m WsMessage) Encode() []byte {
	buf := make([]byte, headerLen+len(m.Channel)+len(m.Params))
	buf[0] = byte(m.Op)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(m.Channel)))
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(m.Params)))
	copy(buf[headerLen:], m.Channel)
	copy(buf[headerLen+len(m.Channel):], m.Params)
	return buf
}

// Decode parses a WsMessage previously produced by Encode.
func Decode(frame []byte) (WsMessage, error) {
	if len(frame) < headerLen {
		return WsMessage{}, ErrFrameTooShort
	}
	op := Op(frame[0])
	channelLen := int(binary.BigEndian.Uint16(frame[1:3]))
	paramsLen := int(binary.BigEndian.Uint32(frame[3:7]))

	if len(frame) < headerLen+channelLen+paramsLen {
		return WsMessage{}, ErrFrameTruncated
	}

	channel := string(frame[headerLen : headerLen+channelLen])
	params := make([]byte, paramsLen)
	copy(params, frame[headerLen+channelLen:headerLen+channelLen+paramsLen])

	return WsMessage{Op: op, Channel: channel, Params: params}, nil
}
