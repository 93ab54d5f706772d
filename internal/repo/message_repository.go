package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/model"
)

var (
	ErrInvalidMessage        = errors.New("invalid message: message cannot be nil")
	ErrInvalidConversationID = errors.New("invalid conversation ID")
	ErrInvalidMessageID      = errors.New("invalid message ID")
	ErrMessageNotFound       = errors.New("message not found")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second

	messagesPageSize = 30
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	CountMessages(ctx context.Context, conversationID string) (int64, error)
	MarkRead(ctx context.Context, conversationID, messageID string, at time.Time) (*model.Message, error)
	SoftDelete(ctx context.Context, conversationID, messageID, senderID string, at time.Time) (bool, error)
	FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// InsertMessage persists a new message and returns it with its assigned id.
func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := m.mongoRepo.Create(ctx, *msg)
	if err != nil {
		m.logger.Error("failed to insert message",
			zap.Error(err),
			zap.String("conversation_id", msg.ConversationID.Hex()),
		)
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}

	m.logger.Debug("message inserted",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return msg, nil
}

// CountMessages counts all messages ever stored in a conversation,
// soft-deleted rows included. Used for first-message detection.
func (m *messageRepository) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", convID).Build()
	return m.mongoRepo.Count(ctx, filter)
}

// MarkRead sets read_at on a message scoped to its conversation. The
// timestamp is written only while read_at is still unset, so repeated
// calls always observe the first value. Returns the current row.
func (m *messageRepository) MarkRead(ctx context.Context, conversationID, messageID string, at time.Time) (*model.Message, error) {
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return nil, err
	}
	msgID, err := parseOID(messageID, ErrInvalidMessageID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unread := db.NewFilter().
		Eq("_id", msgID).
		Eq("conversation_id", convID).
		Eq("read_at", nil).
		Eq("deleted_at", nil).
		Build()

	if _, err := m.mongoRepo.Update(ctx, unread, bson.M{"read_at": at}); err != nil {
		m.logger.Error("failed to mark message read",
			zap.Error(err),
			zap.String("message_id", messageID),
		)
		return nil, fmt.Errorf("mark read: %w", err)
	}

	scope := db.NewFilter().
		Eq("_id", msgID).
		Eq("conversation_id", convID).
		Build()

	msg, err := m.mongoRepo.FindOne(ctx, scope)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("mark read lookup: %w", err)
	}
	return msg, nil
}

// SoftDelete sets deleted_at on a message, but only when senderID wrote
// it and it is not already deleted. Returns false when nothing matched,
// which callers treat as a silent no-op.
func (m *messageRepository) SoftDelete(ctx context.Context, conversationID, messageID, senderID string, at time.Time) (bool, error) {
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return false, err
	}
	msgID, err := parseOID(messageID, ErrInvalidMessageID)
	if err != nil {
		return false, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("_id", msgID).
		Eq("conversation_id", convID).
		Eq("sender_id", senderID).
		Eq("deleted_at", nil).
		Build()

	result, err := m.mongoRepo.Update(ctx, filter, bson.M{"deleted_at": at})
	if err != nil {
		m.logger.Error("failed to soft delete message",
			zap.Error(err),
			zap.String("message_id", messageID),
		)
		return false, fmt.Errorf("soft delete: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// FilterMessages returns one page of a conversation's history, oldest
// first, soft-deleted rows excluded.
func (m *messageRepository) FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", convID).
		Eq("deleted_at", nil).
		Build()

	result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: messagesPageSize,
		SortBy:   "created_at",
		SortDesc: false,
	})
	if err != nil {
		m.logger.Error("failed to filter messages",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
		)
		return nil, fmt.Errorf("filter messages: %w", err)
	}

	m.logger.Debug("messages filtered",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

// DeleteByConversation hard-deletes every message in a conversation.
// Only used by the conversation-delete cascade.
func (m *messageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", convID).Build()
	result, err := m.mongoRepo.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete conversation messages: %w", err)
	}

	m.logger.Info("conversation messages deleted",
		zap.String("conversation_id", conversationID),
		zap.Int64("count", result.DeletedCount),
	)
	return nil
}

// parseOID validates a hex object id before it reaches a filter. Mapping
// failures to the caller's sentinel here means a bad id can never degrade
// into a partial filter that matches some other row.
func parseOID(hex string, sentinel error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, sentinel
	}
	return oid, nil
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
