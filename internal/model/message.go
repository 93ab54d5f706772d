package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/atomhudson/allrentr-chat/internal/event"
)

// Message is a chat message row. Deletion is a soft delete via DeletedAt;
// the row persists but is excluded from every subsequent read. ReadAt is
// set once and never moves backwards.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Content        string             `json:"content" bson:"content"`
	MessageType    string             `json:"messageType" bson:"message_type"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	ReadAt         *time.Time         `json:"readAt" bson:"read_at"`
	DeletedAt      *time.Time         `json:"deletedAt" bson:"deleted_at"`
}

// Payload converts the stored row to its wire form.
func (m *Message) Payload() event.MessagePayload {
	return event.MessagePayload{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    m.MessageType,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

// ValidMessageType reports whether t is one of the accepted wire values.
func ValidMessageType(t string) bool {
	switch t {
	case event.MessageTypeText, event.MessageTypeContact, event.MessageTypeSystem:
		return true
	}
	return false
}
