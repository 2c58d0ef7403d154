package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SwouitAzia/formshandler/protocol"
)

// ErrBadFrame is returned for frames that are not a valid packet envelope.
var ErrBadFrame = errors.New("bad packet frame")

// FrameError is returned for a frame whose envelope decoded but whose
// payload does not match the packet it names. It matches ErrBadFrame.
type FrameError struct {
	PacketID protocol.ID
	Err      error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrBadFrame, e.PacketID, e.Err)
}

func (e *FrameError) Unwrap() []error { return []error{ErrBadFrame, e.Err} }

var errNoPayload = errors.New("missing payload")

// envelope is the JSON text frame carrying one packet.
type envelope struct {
	ID      protocol.ID     `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal encodes pk as a text frame.
func Marshal(pk protocol.Packet) ([]byte, error) {
	var payload json.RawMessage
	if raw, ok := pk.(*protocol.Raw); ok {
		payload = raw.Payload
	} else {
		b, err := json.Marshal(pk)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", pk.ID(), err)
		}
		payload = b
	}
	return json.Marshal(envelope{ID: pk.ID(), Payload: payload})
}

// Unmarshal decodes a text frame. Packets the form engine does not model
// are returned as *protocol.Raw.
func Unmarshal(data []byte) (protocol.Packet, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	var pk protocol.Packet
	switch env.ID {
	case protocol.IDModalFormResponse:
		pk = &protocol.ModalFormResponse{}
	case protocol.IDModalFormRequest:
		pk = &protocol.ModalFormRequest{}
	case protocol.IDClientboundCloseForm:
		return &protocol.ClientboundCloseForm{}, nil
	default:
		return &protocol.Raw{PacketID: env.ID, Payload: env.Payload}, nil
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, &FrameError{PacketID: env.ID, Err: errNoPayload}
	}
	if err := json.Unmarshal(env.Payload, pk); err != nil {
		return nil, &FrameError{PacketID: env.ID, Err: err}
	}
	return pk, nil
}
