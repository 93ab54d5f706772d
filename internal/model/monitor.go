package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API.
type MonitorResponse struct {
	Status   string        `json:"status"` // "healthy" or "idle"
	Sessions SessionStats  `json:"sessions"`
	Clients  []SessionInfo `json:"clients"`
}

// SessionStats holds session-level statistics.
type SessionStats struct {
	TotalConnected      int `json:"totalConnected"`      // live sessions
	JoinedConversations int `json:"joinedConversations"` // distinct joined conversation ids
}

// SessionInfo describes one live session.
type SessionInfo struct {
	ClientID string   `json:"clientId"`
	UserID   string   `json:"userId"`
	Joined   []string `json:"joined"` // conversation ids open in the client
}

// HealthResponse is returned by GET / and GET /health.
type HealthResponse struct {
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Mailbox   bool   `json:"mailbox"`
	Status    string `json:"status"`
}
