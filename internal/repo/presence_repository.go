package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/model"
)

type presenceRepository struct {
	mongoRepo *db.Repository[model.Presence]
	logger    *zap.Logger
}

// PresenceRepository persists online/offline transitions. Writes are
// best-effort: the relay keeps serving chat when they fail, and the
// client's 30s heartbeat re-asserts state after a relay restart.
type PresenceRepository interface {
	Upsert(ctx context.Context, userID string, online bool, at time.Time) error
}

func NewPresenceRepository(repo *db.Repository[model.Presence], logger *zap.Logger) PresenceRepository {
	return &presenceRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *presenceRepository) Upsert(ctx context.Context, userID string, online bool, at time.Time) error {
	if userID == "" {
		return ErrInvalidParticipants
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Build()
	update := map[string]interface{}{
		"user_id":      userID,
		"is_online":    online,
		"last_seen_at": at,
	}

	if _, err := r.mongoRepo.Upsert(ctx, filter, update); err != nil {
		r.logger.Warn("failed to upsert presence",
			zap.String("user_id", userID),
			zap.Bool("online", online),
			zap.Error(err),
		)
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}
