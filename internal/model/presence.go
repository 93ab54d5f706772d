package model

import "time"

// Presence is a user's last known online state, upserted on connect,
// disconnect and on every client heartbeat.
type Presence struct {
	UserID     string    `json:"userId" bson:"user_id"`
	IsOnline   bool      `json:"isOnline" bson:"is_online"`
	LastSeenAt time.Time `json:"lastSeenAt" bson:"last_seen_at"`
}
