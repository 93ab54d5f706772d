package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/model"
)

type notificationRepository struct {
	mongoRepo *db.Repository[model.Notification]
	logger    *zap.Logger
}

// NotificationRepository is the outbox for notification emails. The chat
// path only queues rows; the notify sender owns the state transitions.
type NotificationRepository interface {
	Queue(ctx context.Context, n *model.Notification) error
	Pending(ctx context.Context) ([]model.Notification, error)
	MarkSent(ctx context.Context, id primitive.ObjectID) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error
}

func NewNotificationRepository(repo *db.Repository[model.Notification], logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *notificationRepository) Queue(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return ErrInvalidMessage
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	n.Status = model.NotificationQueued
	n.CreatedAt = now
	n.UpdatedAt = now

	result, err := r.mongoRepo.Create(ctx, *n)
	if err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid
	}

	r.logger.Debug("notification queued",
		zap.String("kind", n.Kind),
		zap.String("recipient_id", n.RecipientID),
	)
	return nil
}

func (r *notificationRepository) Pending(ctx context.Context) ([]model.Notification, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("status", model.NotificationQueued).Build()
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	return r.mongoRepo.FindAll(ctx, filter, opts)
}

func (r *notificationRepository) MarkSent(ctx context.Context, id primitive.ObjectID) error {
	return r.setStatus(ctx, id, model.NotificationSent, "")
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	return r.setStatus(ctx, id, model.NotificationFailed, reason)
}

func (r *notificationRepository) setStatus(ctx context.Context, id primitive.ObjectID, status, reason string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if reason != "" {
		update["error"] = reason
	}

	if _, err := r.mongoRepo.Update(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("mark notification %s: %w", status, err)
	}
	return nil
}
