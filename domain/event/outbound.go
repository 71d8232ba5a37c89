package event

import (
	"encoding/json"

	"campus-relay/domain"
)

// Outbound frames carry their own "type" tag so that one json.Marshal
// call produces the exact flat shape clients expect. Constructors set
// the tag; never build these structs by hand.

type NewMessage struct {
	Type    Type           `json:"type"`
	Message domain.Message `json:"message"`
}

func NewMessageEvent(msg domain.Message) NewMessage {
	return NewMessage{Type: TypeNewMessage, Message: msg}
}

type MessageEdited struct {
	Type    Type           `json:"type"`
	Message domain.Message `json:"message"`
}

func MessageEditedEvent(msg domain.Message) MessageEdited {
	return MessageEdited{Type: TypeMessageEdited, Message: msg}
}

type MessageDeleted struct {
	Type           Type                  `json:"type"`
	ConversationID domain.ConversationID `json:"conversationId"`
	MessageID      domain.MessageID      `json:"messageId"`
}

func MessageDeletedEvent(conversationID domain.ConversationID, messageID domain.MessageID) MessageDeleted {
	return MessageDeleted{Type: TypeMessageDeleted, ConversationID: conversationID, MessageID: messageID}
}

type ReadReceipt struct {
	Type             Type                  `json:"type"`
	ConversationID   domain.ConversationID `json:"conversationId"`
	ReaderIdentityID domain.IdentityID     `json:"readerIdentityId"`
}

func ReadReceiptEvent(conversationID domain.ConversationID, readerID domain.IdentityID) ReadReceipt {
	return ReadReceipt{Type: TypeReadReceipt, ConversationID: conversationID, ReaderIdentityID: readerID}
}

type TypingBroadcast struct {
	Type           Type                  `json:"type"`
	ConversationID domain.ConversationID `json:"conversationId"`
	IdentityID     domain.IdentityID     `json:"identityId"`
	IsTyping       bool                  `json:"isTyping"`
}

func TypingEvent(conversationID domain.ConversationID, identityID domain.IdentityID, isTyping bool) TypingBroadcast {
	return TypingBroadcast{Type: TypeTyping, ConversationID: conversationID, IdentityID: identityID, IsTyping: isTyping}
}

type CallIncoming struct {
	Type             Type              `json:"type"`
	CallerIdentityID domain.IdentityID `json:"callerIdentityId"`
	CallType         domain.MediaKind  `json:"callType"`
}

func CallIncomingEvent(callerID domain.IdentityID, kind domain.MediaKind) CallIncoming {
	return CallIncoming{Type: TypeCallIncoming, CallerIdentityID: callerID, CallType: kind}
}

type CallAccepted struct {
	Type Type `json:"type"`
}

func CallAcceptedEvent() CallAccepted {
	return CallAccepted{Type: TypeCallAccepted}
}

type CallSignalRelay struct {
	Type             Type              `json:"type"`
	SenderIdentityID domain.IdentityID `json:"senderIdentityId"`
	Signal           json.RawMessage   `json:"signal"`
}

func CallSignalEvent(senderID domain.IdentityID, signal json.RawMessage) CallSignalRelay {
	return CallSignalRelay{Type: TypeCallSignal, SenderIdentityID: senderID, Signal: signal}
}

type CallEnded struct {
	Type Type `json:"type"`
}

func CallEndedEvent() CallEnded {
	return CallEnded{Type: TypeCallEnded}
}

// CallError surfaces a failed call operation (busy, unreachable, no such
// session) back to the identity that requested it.
type CallError struct {
	Type   Type   `json:"type"`
	Reason string `json:"reason"`
}

func CallErrorEvent(reason string) CallError {
	return CallError{Type: TypeCallError, Reason: reason}
}

// Encode serializes an outbound frame once, so fan-out pushes the same
// bytes to every recipient connection.
func Encode(e any) ([]byte, error) {
	return json.Marshal(e)
}
