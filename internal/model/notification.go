package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification outbox status values.
const (
	NotificationQueued = "queued"
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification kinds.
const (
	// NotificationFirstMessage - email the owner about a leaser's first
	// message in a conversation.
	NotificationFirstMessage = "first_message"
)

// Notification is an outbox row. The chat path only inserts queued rows;
// a separate sender drains them, so notification delivery can fail or
// retry without touching message delivery.
type Notification struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Kind           string             `json:"kind" bson:"kind"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	RecipientID    string             `json:"recipientId" bson:"recipient_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Preview        string             `json:"preview" bson:"preview"`
	Status         string             `json:"status" bson:"status"`
	Error          string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
}
