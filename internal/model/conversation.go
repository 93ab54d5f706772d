package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contact request status values.
const (
	ContactPending  = "pending"
	ContactApproved = "approved"
	ContactRejected = "rejected"
)

// Conversation binds exactly two participants: the listing owner and the
// prospective leaser. It is created lazily on first contact and is unique
// per (listing, leaser); later enquiries about the same listing reuse it.
type Conversation struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ListingID            string             `json:"listingId" bson:"listing_id"`
	OwnerID              string             `json:"ownerId" bson:"owner_id"`
	LeaserID             string             `json:"leaserId" bson:"leaser_id"`
	ContactRequestStatus string             `json:"contactRequestStatus" bson:"contact_request_status"`
	ContactShared        bool               `json:"contactShared" bson:"contact_shared"`
	CreatedAt            time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updated_at"`
	LastMessageAt        time.Time          `json:"lastMessageAt" bson:"last_message_at"`
}

// HasParticipant reports whether userID is the owner or the leaser.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.OwnerID || userID == c.LeaserID)
}

// Counterpart returns the other participant. Empty when userID is not a
// participant at all.
func (c *Conversation) Counterpart(userID string) string {
	switch userID {
	case c.OwnerID:
		return c.LeaserID
	case c.LeaserID:
		return c.OwnerID
	default:
		return ""
	}
}
