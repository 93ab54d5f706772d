package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EnvelopeTTL is the rolling lifetime of a mailbox key. Every append
// resets it, so a mailbox only expires after seven idle days.
const EnvelopeTTL = 7 * 24 * time.Hour

// Store queues serialized server events for recipients with no live
// session, keyed per (recipient, conversation). Durability here is a
// best-effort hedge: operations never fail loudly and never block the
// chat path, they log and move on.
type Store interface {
	// Enqueue appends an envelope and resets the key's TTL.
	Enqueue(ctx context.Context, recipientID, conversationID string, envelope []byte)

	// DrainAndClear returns all queued envelopes oldest-first and deletes
	// the key as a single operation. Returns nil when the key is empty or
	// the store is unreachable.
	DrainAndClear(ctx context.Context, recipientID, conversationID string) [][]byte

	// Clear deletes the key without returning its contents.
	Clear(ctx context.Context, recipientID, conversationID string)

	// RecordActivity writes the conversation's last-activity timestamp.
	RecordActivity(ctx context.Context, conversationID string, at time.Time)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) bool
}

func mailboxKey(recipientID, conversationID string) string {
	return fmt.Sprintf("messages:%s:%s", recipientID, conversationID)
}

func activityKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:activity", conversationID)
}

type redisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// New connects a redis-backed store. An empty URL degrades to a disabled
// store whose operations all no-op, so the relay runs without offline
// durability rather than refusing to start.
func New(url, token string, logger *zap.Logger) (Store, error) {
	if url == "" {
		logger.Warn("mailbox store not configured, offline durability disabled")
		return &disabledStore{}, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse mailbox url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}

	return &redisStore{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

// NewWithClient wraps an existing redis client. Used by tests.
func NewWithClient(client *redis.Client, logger *zap.Logger) Store {
	return &redisStore{client: client, logger: logger}
}

func (s *redisStore) Enqueue(ctx context.Context, recipientID, conversationID string, envelope []byte) {
	key := mailboxKey(recipientID, conversationID)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, envelope)
	pipe.Expire(ctx, key, EnvelopeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("mailbox enqueue failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *redisStore) DrainAndClear(ctx context.Context, recipientID, conversationID string) [][]byte {
	key := mailboxKey(recipientID, conversationID)

	pipe := s.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("mailbox drain failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	}

	values := rangeCmd.Val()
	if len(values) == 0 {
		return nil
	}

	envelopes := make([][]byte, 0, len(values))
	for _, v := range values {
		envelopes = append(envelopes, []byte(v))
	}
	return envelopes
}

func (s *redisStore) Clear(ctx context.Context, recipientID, conversationID string) {
	key := mailboxKey(recipientID, conversationID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("mailbox clear failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *redisStore) RecordActivity(ctx context.Context, conversationID string, at time.Time) {
	key := activityKey(conversationID)
	if err := s.client.Set(ctx, key, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		s.logger.Warn("activity record failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *redisStore) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// disabledStore is the degraded mode when no mailbox URL is configured.
type disabledStore struct{}

func (d *disabledStore) Enqueue(context.Context, string, string, []byte) {}

func (d *disabledStore) DrainAndClear(context.Context, string, string) [][]byte { return nil }

func (d *disabledStore) Clear(context.Context, string, string) {}

func (d *disabledStore) RecordActivity(context.Context, string, time.Time) {}

func (d *disabledStore) Ping(context.Context) bool { return false }
