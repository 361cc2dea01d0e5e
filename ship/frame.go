// Package ship implements the SHIP transport-and-handshake protocol:
// frame codec, JSON message shapes, the connection state machine (SME),
// and the per-connection service goroutine that drives both.
package ship

import (
	"fmt"

	"github.com/shipspine/node/eerr"
)

// FrameType is SHIP's one-byte frame type prefix.
type FrameType byte

const (
	FrameInit    FrameType = 0x00
	FrameData    FrameType = 0x01
	FrameControl FrameType = 0x02
	FrameEnd     FrameType = 0x03
)

func (t FrameType) String() string {
	switch t {
	case FrameInit:
		return "init"
	case FrameData:
		return "data"
	case FrameControl:
		return "control"
	case FrameEnd:
		return "end"
	default:
		return fmt.Sprintf("FrameType(%#02x)", byte(t))
	}
}

// Frame is a decoded SHIP wire frame: a one-byte type prefix followed by
// a UTF-8 JSON payload (empty for init/end).
type Frame struct {
	Type    FrameType
	Payload []byte
}

// EncodeFrame renders a Frame back to wire bytes.
func EncodeFrame(f Frame) []byte {
	out := make([]byte, 1+len(f.Payload))
	out[0] = byte(f.Type)
	copy(out[1:], f.Payload)
	return out
}

// DecodeFrame splits a single complete WebSocket message (already
// defragmented) into its type byte and JSON payload.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) == 0 {
		return Frame{}, fmt.Errorf("%w: empty ship frame", eerr.ErrParse)
	}
	t := FrameType(raw[0])
	switch t {
	case FrameInit, FrameData, FrameControl, FrameEnd:
	default:
		return Frame{}, fmt.Errorf("%w: unknown ship frame type %#02x", eerr.ErrParse, raw[0])
	}
	return Frame{Type: t, Payload: raw[1:]}, nil
}
