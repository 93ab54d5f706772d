package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/model"
	"github.com/atomhudson/allrentr-chat/internal/repo"
)

const pollInterval = 5 * time.Second

// Sender drains the notification outbox and posts each row to the
// outbound notification endpoint. It runs beside the relay so that a
// slow or failing email provider can never stall message delivery: the
// chat path only ever inserts queued rows.
type Sender struct {
	notifications repo.NotificationRepository
	endpoint      string
	frontendBase  string
	client        *http.Client
	logger        *zap.Logger
	cancel        context.CancelFunc
}

// emailRequest is the JSON body posted for each notification.
type emailRequest struct {
	Kind           string `json:"kind"`
	RecipientID    string `json:"recipientId"`
	SenderID       string `json:"senderId"`
	ConversationID string `json:"conversationId"`
	Preview        string `json:"preview"`
	Link           string `json:"link,omitempty"`
}

func NewSender(notifications repo.NotificationRepository, endpoint, frontendBase string, logger *zap.Logger) *Sender {
	return &Sender{
		notifications: notifications,
		endpoint:      endpoint,
		frontendBase:  frontendBase,
		client:        &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
	}
}

// Start begins polling the outbox. A sender without an endpoint stays
// idle; queued rows simply accumulate until one is configured.
func (s *Sender) Start(ctx context.Context) {
	if s.endpoint == "" {
		s.logger.Warn("notification endpoint not configured, sender idle")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.notifications.Pending(ctx)
	if err != nil {
		s.logger.Error("failed to read notification outbox", zap.Error(err))
		return
	}

	for _, n := range pending {
		if err := s.deliver(ctx, &n); err != nil {
			s.logger.Error("notification delivery failed",
				zap.Error(err),
				zap.String("notification_id", n.ID.Hex()),
				zap.String("recipient_id", n.RecipientID),
			)
			if markErr := s.notifications.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
				s.logger.Error("failed to mark notification failed", zap.Error(markErr))
			}
			continue
		}

		if err := s.notifications.MarkSent(ctx, n.ID); err != nil {
			s.logger.Error("failed to mark notification sent", zap.Error(err))
		}
		s.logger.Info("notification delivered",
			zap.String("notification_id", n.ID.Hex()),
			zap.String("kind", n.Kind),
			zap.String("recipient_id", n.RecipientID),
		)
	}
}

func (s *Sender) deliver(ctx context.Context, n *model.Notification) error {
	body := emailRequest{
		Kind:           n.Kind,
		RecipientID:    n.RecipientID,
		SenderID:       n.SenderID,
		ConversationID: n.ConversationID.Hex(),
		Preview:        n.Preview,
	}
	if s.frontendBase != "" {
		body.Link = fmt.Sprintf("%s/chats/%s", s.frontendBase, n.ConversationID.Hex())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
