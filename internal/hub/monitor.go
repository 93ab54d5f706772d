package hub

import (
	"github.com/atomhudson/allrentr-chat/internal/model"
)

// MonitorService gathers registry statistics for the monitor endpoint.
type MonitorService struct {
	registry *Registry
}

func NewMonitorService(registry *Registry) *MonitorService {
	return &MonitorService{registry: registry}
}

// GetStats returns a snapshot of every live session.
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.registry.Snapshot()

	sessions := make([]model.SessionInfo, 0, len(clients))
	joinedTotal := 0
	for _, c := range clients {
		joined := c.JoinedConversations()
		joinedTotal += len(joined)
		sessions = append(sessions, model.SessionInfo{
			ClientID: c.ID,
			UserID:   c.userId,
			Joined:   joined,
		})
	}

	status := "healthy"
	if len(clients) == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Sessions: model.SessionStats{
			TotalConnected:      len(clients),
			JoinedConversations: joinedTotal,
		},
		Clients: sessions,
	}
}
