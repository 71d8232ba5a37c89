// Package event defines the frames exchanged with connected clients.
// Frames are flat JSON objects discriminated by a "type" field, matching
// what the web and mobile clients already speak.
package event

import (
	"encoding/json"
	"fmt"

	"campus-relay/domain"
)

type Type string

// Client to relay.
const (
	TypeTyping       Type = "typing"
	TypeCallRequest  Type = "call_request"
	TypeCallAccepted Type = "call_accepted"
	TypeCallSignal   Type = "call_signal"
	TypeCallEnded    Type = "call_ended"
)

// Relay to client.
const (
	TypeNewMessage     Type = "new_message"
	TypeMessageEdited  Type = "message_edited"
	TypeMessageDeleted Type = "message_deleted"
	TypeReadReceipt    Type = "read_receipt"
	TypeCallIncoming   Type = "call_incoming"
	TypeCallError      Type = "call_error"
)

type Typing struct {
	ConversationID domain.ConversationID `json:"conversationId" validate:"required"`
	IsTyping       bool                  `json:"isTyping"`
}

type CallRequest struct {
	TargetIdentityID domain.IdentityID `json:"targetIdentityId" validate:"required,gt=0"`
	CallType         domain.MediaKind  `json:"callType" validate:"required,oneof=audio video"`
}

type CallAccept struct {
	TargetIdentityID domain.IdentityID `json:"targetIdentityId" validate:"required,gt=0"`
}

type CallSignal struct {
	TargetIdentityID domain.IdentityID `json:"targetIdentityId" validate:"required,gt=0"`
	// Signal is opaque offer/answer/candidate data. The relay forwards it
	// verbatim and never inspects its structure.
	Signal json.RawMessage `json:"signal" validate:"required"`
}

type CallEnd struct {
	TargetIdentityID domain.IdentityID `json:"targetIdentityId" validate:"required,gt=0"`
}

// Inbound is a decoded client frame. Exactly one payload field is set,
// according to Type.
type Inbound struct {
	Type       Type
	Typing     *Typing
	CallReq    *CallRequest
	CallAccept *CallAccept
	CallSignal *CallSignal
	CallEnd    *CallEnd
}

// DecodeInbound parses a raw client frame. Unknown types and malformed
// payloads are returned as errors; the transport logs and drops them.
func DecodeInbound(raw []byte) (Inbound, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Inbound{}, fmt.Errorf("frame is not a JSON object: %w", err)
	}

	in := Inbound{Type: head.Type}
	var err error
	switch head.Type {
	case TypeTyping:
		in.Typing, err = decodePayload[Typing](raw)
	case TypeCallRequest:
		in.CallReq, err = decodePayload[CallRequest](raw)
	case TypeCallAccepted:
		in.CallAccept, err = decodePayload[CallAccept](raw)
	case TypeCallSignal:
		in.CallSignal, err = decodePayload[CallSignal](raw)
	case TypeCallEnded:
		in.CallEnd, err = decodePayload[CallEnd](raw)
	default:
		return Inbound{}, fmt.Errorf("unknown frame type %q", head.Type)
	}
	if err != nil {
		return Inbound{}, fmt.Errorf("decoding %q frame: %w", head.Type, err)
	}
	return in, nil
}

func decodePayload[T any](raw []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
