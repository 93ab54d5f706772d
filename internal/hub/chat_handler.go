package hub

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/event"
	"github.com/atomhudson/allrentr-chat/internal/mailbox"
	"github.com/atomhudson/allrentr-chat/internal/model"
	"github.com/atomhudson/allrentr-chat/internal/repo"
)

const previewMaxLen = 120

// ChatHandler dispatches parsed client events. All persistence and
// routing decisions live here; Client only moves bytes.
type ChatHandler struct {
	registry      *Registry
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	presence      repo.PresenceRepository
	notifications repo.NotificationRepository
	mailbox       mailbox.Store
	logger        *zap.Logger
}

func NewChatHandler(
	registry *Registry,
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	presence repo.PresenceRepository,
	notifications repo.NotificationRepository,
	mailboxStore mailbox.Store,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		notifications: notifications,
		mailbox:       mailboxStore,
		logger:        logger,
	}
}

// HandleEvent parses and dispatches a single inbound event. A bad
// payload is a soft failure: the client gets an error event and the
// connection stays open.
func (h *ChatHandler) HandleEvent(c *Client, payload []byte) {
	ev, err := event.ParseClient(payload)
	if err != nil {
		var unknown *event.UnknownTypeError
		if errors.As(err, &unknown) {
			h.logger.Warn("unknown event type",
				zap.String("type", unknown.Type),
				zap.String("user_id", c.userId),
			)
			h.sendError(c, "unknown event type: "+unknown.Type)
			return
		}

		h.logger.Warn("malformed event", zap.Error(err), zap.String("user_id", c.userId))
		h.sendError(c, "malformed event")
		return
	}

	switch ev := ev.(type) {
	case *event.JoinConversation:
		h.handleJoin(c, ev)
	case *event.LeaveConversation:
		c.Leave(ev.ConversationID)
	case *event.SendMessage:
		h.handleSendMessage(c, ev)
	case *event.Typing:
		h.handleTyping(c, ev.ConversationID, true)
	case *event.StopTyping:
		h.handleTyping(c, ev.ConversationID, false)
	case *event.MarkRead:
		h.handleMarkRead(c, ev)
	case *event.DeleteMessage:
		h.handleDeleteMessage(c, ev)
	case *event.UserOnline:
		h.handleUserOnline(c)
	}
}

// authorize loads the conversation and checks the user is one of its
// two participants. A store failure is treated the same as a missing
// conversation: access is denied, never guessed.
func (h *ChatHandler) authorize(ctx context.Context, c *Client, conversationId string) *model.Conversation {
	conv, err := h.conversations.GetConversation(ctx, conversationId)
	if err != nil {
		h.logger.Error("conversation lookup failed",
			zap.Error(err),
			zap.String("conversation_id", conversationId),
			zap.String("user_id", c.userId),
		)
		h.sendError(c, "unable to verify conversation access")
		return nil
	}

	if conv == nil || !conv.HasParticipant(c.userId) {
		h.sendError(c, "not a participant of this conversation")
		return nil
	}

	return conv
}

func (h *ChatHandler) handleJoin(c *Client, ev *event.JoinConversation) {
	ctx := context.Background()

	conv := h.authorize(ctx, c, ev.ConversationID)
	if conv == nil {
		return
	}

	c.Join(ev.ConversationID)

	// Replay anything queued while this user was away, then ack so the
	// client knows it is caught up.
	for _, envelope := range h.mailbox.DrainAndClear(ctx, c.userId, ev.ConversationID) {
		c.SendRaw(envelope)
	}

	c.SendRaw(event.Marshal(event.NewJoinedConversation(ev.ConversationID)))
}

func (h *ChatHandler) handleSendMessage(c *Client, ev *event.SendMessage) {
	ctx := context.Background()

	content := strings.TrimSpace(ev.Content)
	if content == "" {
		h.sendError(c, "message content is required")
		return
	}

	messageType := ev.MessageType
	if messageType == "" {
		messageType = event.MessageTypeText
	}
	if !model.ValidMessageType(messageType) {
		h.sendError(c, "invalid message type: "+messageType)
		return
	}

	conv := h.authorize(ctx, c, ev.ConversationID)
	if conv == nil {
		return
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       c.userId,
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      now,
	}

	inserted, err := h.messages.InsertMessage(ctx, msg)
	if err != nil {
		// No ack: the sender's client keeps the message pending and
		// may retry.
		h.logger.Error("failed to persist message",
			zap.Error(err),
			zap.String("conversation_id", ev.ConversationID),
			zap.String("sender_id", c.userId),
		)
		return
	}

	recipient := conv.Counterpart(c.userId)

	h.queueFirstMessageNotification(ctx, conv, inserted, recipient)

	payload := inserted.Payload()
	c.SendRaw(event.Marshal(event.NewMessageSent(payload)))

	// Queue first, deliver second: the envelope survives a crash
	// between persist and push. The push goes to any live session; the
	// mailbox is cleared only when the recipient has the conversation
	// open, so a backgrounded client still replays on its next join.
	envelope := event.Marshal(event.NewNewMessage(payload))
	h.mailbox.Enqueue(ctx, recipient, ev.ConversationID, envelope)
	h.mailbox.RecordActivity(ctx, ev.ConversationID, now)

	if err := h.conversations.TouchLastMessage(ctx, ev.ConversationID, now); err != nil {
		h.logger.Error("failed to touch conversation", zap.Error(err), zap.String("conversation_id", ev.ConversationID))
	}

	if rc := h.registry.Lookup(recipient); rc != nil {
		if rc.SendRaw(envelope) && rc.IsJoined(ev.ConversationID) {
			h.mailbox.Clear(ctx, recipient, ev.ConversationID)
		}
	}
}

func (h *ChatHandler) queueFirstMessageNotification(ctx context.Context, conv *model.Conversation, msg *model.Message, recipient string) {
	// Only the leaser's opening message emails the owner; an owner who
	// writes first already knows about the enquiry.
	if msg.SenderID != conv.LeaserID {
		return
	}

	count, err := h.messages.CountMessages(ctx, conv.ID.Hex())
	if err != nil {
		h.logger.Error("failed to count messages", zap.Error(err), zap.String("conversation_id", conv.ID.Hex()))
		return
	}
	if count != 1 {
		return
	}

	preview := msg.Content
	if len(preview) > previewMaxLen {
		preview = preview[:previewMaxLen]
	}

	n := &model.Notification{
		Kind:           model.NotificationFirstMessage,
		ConversationID: conv.ID,
		RecipientID:    recipient,
		SenderID:       msg.SenderID,
		Preview:        preview,
	}
	if err := h.notifications.Queue(ctx, n); err != nil {
		h.logger.Error("failed to queue notification", zap.Error(err), zap.String("conversation_id", conv.ID.Hex()))
	}
}

// handleTyping relays a typing indicator. Indicators are ephemeral:
// they are never persisted or queued, and silently dropped when the
// counterpart is not live in the conversation.
func (h *ChatHandler) handleTyping(c *Client, conversationId string, typing bool) {
	ctx := context.Background()
	conv, err := h.conversations.GetConversation(ctx, conversationId)
	if err != nil || conv == nil || !conv.HasParticipant(c.userId) {
		return
	}

	rc := h.registry.Lookup(conv.Counterpart(c.userId))
	if rc == nil || !rc.IsJoined(conversationId) {
		return
	}

	if typing {
		rc.SendRaw(event.Marshal(event.NewUserTyping(conversationId, c.userId)))
	} else {
		rc.SendRaw(event.Marshal(event.NewUserStoppedTyping(conversationId, c.userId)))
	}
}

func (h *ChatHandler) handleMarkRead(c *Client, ev *event.MarkRead) {
	ctx := context.Background()

	conv := h.authorize(ctx, c, ev.ConversationID)
	if conv == nil {
		return
	}

	msg, err := h.messages.MarkRead(ctx, ev.ConversationID, ev.MessageID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrMessageNotFound) {
			h.sendError(c, "message not found")
			return
		}
		h.logger.Error("failed to mark message read",
			zap.Error(err),
			zap.String("conversation_id", ev.ConversationID),
			zap.String("message_id", ev.MessageID),
		)
		return
	}

	if msg.ReadAt == nil {
		return
	}

	// The receipt goes to whoever wrote the message; a caller marking
	// their own message read learns nothing new.
	if msg.SenderID == c.userId {
		return
	}
	if rc := h.registry.Lookup(msg.SenderID); rc != nil {
		rc.SendRaw(event.Marshal(event.NewMessageRead(ev.ConversationID, ev.MessageID, c.userId, *msg.ReadAt)))
	}
}

func (h *ChatHandler) handleDeleteMessage(c *Client, ev *event.DeleteMessage) {
	ctx := context.Background()

	conv := h.authorize(ctx, c, ev.ConversationID)
	if conv == nil {
		return
	}

	deleted, err := h.messages.SoftDelete(ctx, ev.ConversationID, ev.MessageID, c.userId, time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to delete message",
			zap.Error(err),
			zap.String("conversation_id", ev.ConversationID),
			zap.String("message_id", ev.MessageID),
		)
		return
	}

	if !deleted {
		// Only the original sender may delete, and only once. Anything
		// else is silently dropped.
		return
	}

	notice := event.Marshal(event.NewMessageDeleted(ev.ConversationID, ev.MessageID))
	c.SendRaw(notice)
	if rc := h.registry.Lookup(conv.Counterpart(c.userId)); rc != nil && rc.IsJoined(ev.ConversationID) {
		rc.SendRaw(notice)
	}
}

func (h *ChatHandler) handleUserOnline(c *Client) {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := h.presence.Upsert(ctx, c.userId, true, now); err != nil {
		h.logger.Error("failed to update presence", zap.Error(err), zap.String("user_id", c.userId))
	}

	h.broadcastToCounterparts(ctx, c.userId, event.Marshal(event.NewUserWentOnline(c.userId)))
}

// HandleDisconnect marks the user offline and tells their counterparts.
// An old socket replaced by a newer login must not touch presence.
func (h *ChatHandler) HandleDisconnect(c *Client) {
	if h.registry.Lookup(c.userId) != c {
		return
	}

	ctx := context.Background()
	now := time.Now().UTC()

	if err := h.presence.Upsert(ctx, c.userId, false, now); err != nil {
		h.logger.Error("failed to update presence", zap.Error(err), zap.String("user_id", c.userId))
	}

	h.broadcastToCounterparts(ctx, c.userId, event.Marshal(event.NewUserWentOffline(c.userId, now)))
}

// broadcastToCounterparts pushes an envelope to every live counterpart
// of the user's conversations, at most once per counterpart.
func (h *ChatHandler) broadcastToCounterparts(ctx context.Context, userId string, envelope []byte) {
	convs, err := h.conversations.ListForUser(ctx, userId)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err), zap.String("user_id", userId))
		return
	}

	seen := make(map[string]struct{}, len(convs))
	for _, conv := range convs {
		counterpart := conv.Counterpart(userId)
		if _, dup := seen[counterpart]; dup {
			continue
		}
		seen[counterpart] = struct{}{}

		if rc := h.registry.Lookup(counterpart); rc != nil {
			rc.SendRaw(envelope)
		}
	}
}

func (h *ChatHandler) sendError(c *Client, message string) {
	c.SendRaw(event.Marshal(event.NewError(message)))
}
