// Package protocol defines the packets exchanged when presenting a form and
// the decoding rules for the client's reply.
//
// Only the packets the form engine reads or writes are modeled in detail.
// Everything else crosses the boundary as a Raw packet carrying its numeric
// ID, which is all the guard needs to apply its filter.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ID is a game packet identifier.
type ID uint32

const (
	IDDisconnect             ID = 5
	IDText                   ID = 9
	IDMovePlayer             ID = 19
	IDInventoryTransaction   ID = 30
	IDInventorySlot          ID = 50
	IDRequestChunkRadius     ID = 69
	IDCommandRequest         ID = 77
	IDModalFormRequest       ID = 100
	IDModalFormResponse      ID = 101
	IDNetworkStackLatency    ID = 115
	IDClientCacheStatus      ID = 129
	IDClientCacheBlobStatus  ID = 135
	IDPlayerAuthInput        ID = 144
	IDItemStackRequest       ID = 147
	IDPacketViolationWarning ID = 156
	IDClientboundCloseForm   ID = 310
	IDServerboundDiagnostics ID = 315
)

var names = map[ID]string{
	IDDisconnect:             "disconnect",
	IDText:                   "text",
	IDMovePlayer:             "move_player",
	IDInventoryTransaction:   "inventory_transaction",
	IDInventorySlot:          "inventory_slot",
	IDRequestChunkRadius:     "request_chunk_radius",
	IDCommandRequest:         "command_request",
	IDModalFormRequest:       "modal_form_request",
	IDModalFormResponse:      "modal_form_response",
	IDNetworkStackLatency:    "network_stack_latency",
	IDClientCacheStatus:      "client_cache_status",
	IDClientCacheBlobStatus:  "client_cache_blob_status",
	IDPlayerAuthInput:        "player_auth_input",
	IDItemStackRequest:       "item_stack_request",
	IDPacketViolationWarning: "packet_violation_warning",
	IDClientboundCloseForm:   "clientbound_close_form",
	IDServerboundDiagnostics: "serverbound_diagnostics",
}

func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("packet(%d)", uint32(id))
}

// Packet is implemented by every packet crossing the boundary.
type Packet interface {
	ID() ID
}

// ModalFormRequest asks the client to display a form.
type ModalFormRequest struct {
	FormID uint32 `json:"formId"`
	// FormData is the form description.
	FormData json.RawMessage `json:"formData"`
}

func (*ModalFormRequest) ID() ID { return IDModalFormRequest }

// CancelReason explains why the client closed a form without answering.
type CancelReason uint8

const (
	CancelUserClosed CancelReason = iota
	CancelUserBusy
)

func (r CancelReason) String() string {
	switch r {
	case CancelUserClosed:
		return "user_closed"
	case CancelUserBusy:
		return "user_busy"
	default:
		return fmt.Sprintf("cancel(%d)", uint8(r))
	}
}

// ModalFormResponse is the client's reply to a form. Exactly one of
// FormData and CancelReason is expected to be set.
type ModalFormResponse struct {
	FormID uint32 `json:"formId"`
	// FormData is the JSON text of the reply.
	FormData     *string       `json:"formData,omitempty"`
	CancelReason *CancelReason `json:"cancelReason,omitempty"`
}

func (*ModalFormResponse) ID() ID { return IDModalFormResponse }

// ClientboundCloseForm closes every form the client is displaying.
type ClientboundCloseForm struct{}

func (*ClientboundCloseForm) ID() ID { return IDClientboundCloseForm }

// Raw is any packet the form engine does not interpret.
type Raw struct {
	PacketID ID
	Payload  json.RawMessage
}

func (r *Raw) ID() ID { return r.PacketID }

// Cancelled returns a reply that closes form id with reason.
func Cancelled(id uint32, reason CancelReason) *ModalFormResponse {
	return &ModalFormResponse{FormID: id, CancelReason: &reason}
}

// Answered returns a reply to form id carrying data.
func Answered(id uint32, data string) *ModalFormResponse {
	return &ModalFormResponse{FormID: id, FormData: &data}
}
