package domain

import "time"

type ConversationID int64

type MessageID int64

// Message is the persisted message record as the REST layer hands it to
// the relay after committing the store write. The relay forwards it to
// live connections and never writes it anywhere.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       IdentityID     `json:"senderIdentityId"`
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	IsEdited       bool           `json:"isEdited"`
	CreatedAt      time.Time      `json:"createdAt"`
}
