package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/model"
)

var (
	ErrInvalidParticipants  = errors.New("conversation requires a listing, an owner and a leaser")
	ErrInvalidStatus        = errors.New("invalid contact request status")
	ErrConversationNotFound = errors.New("conversation not found")
)

type conversationRepository struct {
	con       *mongo.Database
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

type ConversationRepository interface {
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	GetOrCreate(ctx context.Context, listingID, ownerID, leaserID string) (*model.Conversation, bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	SetContactStatus(ctx context.Context, conversationID, status string, shared bool) error
	TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

func NewConversationRepository(con *mongo.Database, repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		con:       con,
		mongoRepo: repo,
		logger:    logger,
	}
}

// EnsureConversationIndexes creates the unique (listing, leaser) index that
// backs lazy conversation creation. Called once at startup.
func EnsureConversationIndexes(ctx context.Context, con *mongo.Database, collection string) error {
	_, err := con.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "leaser_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure conversation indexes: %w", err)
	}
	return nil
}

// GetConversation fetches a conversation by id. Returns nil without error
// when no such conversation exists.
func (r *conversationRepository) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conversation, err := r.mongoRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("conversation not found",
				zap.String("conversation_id", conversationID),
			)
			return nil, nil
		}
		if errors.Is(err, primitive.ErrInvalidHex) {
			return nil, nil
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return conversation, nil
}

// GetOrCreate returns the conversation for (listing, leaser), creating it
// with a pending contact request on first contact. The second return value
// reports whether a new conversation was created.
func (r *conversationRepository) GetOrCreate(ctx context.Context, listingID, ownerID, leaserID string) (*model.Conversation, bool, error) {
	if listingID == "" || ownerID == "" || leaserID == "" {
		return nil, false, ErrInvalidParticipants
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("listing_id", listingID).Eq("leaser_id", leaserID).Build()

	existing, err := r.mongoRepo.FindOne(ctx, filter)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("lookup conversation: %w", err)
	}

	now := time.Now().UTC()
	conversation := model.Conversation{
		ListingID:            listingID,
		OwnerID:              ownerID,
		LeaserID:             leaserID,
		ContactRequestStatus: model.ContactPending,
		CreatedAt:            now,
		UpdatedAt:            now,
		LastMessageAt:        now,
	}

	result, err := r.mongoRepo.Create(ctx, conversation)
	if err != nil {
		// Lost the creation race: the unique index rejected the insert,
		// so the row now exists.
		if mongo.IsDuplicateKeyError(err) {
			existing, lookupErr := r.mongoRepo.FindOne(ctx, filter)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("lookup after duplicate: %w", lookupErr)
			}
			return existing, false, nil
		}
		r.logger.Error("failed to create conversation",
			zap.String("listing_id", listingID),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		conversation.ID = oid
	}

	r.logger.Info("conversation created",
		zap.String("conversation_id", conversation.ID.Hex()),
		zap.String("listing_id", listingID),
	)
	return &conversation, true, nil
}

// ListForUser returns every conversation where the user is the owner or
// the leaser, most recent activity first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidParticipants
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Or(bson.M{"owner_id": userID}, bson.M{"leaser_id": userID}).
		Build()

	opts := options.Find().SetSort(bson.M{"last_message_at": -1})
	conversations, err := r.mongoRepo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// SetContactStatus records the contact-share decision.
func (r *conversationRepository) SetContactStatus(ctx context.Context, conversationID, status string, shared bool) error {
	if status != model.ContactApproved && status != model.ContactRejected {
		return ErrInvalidStatus
	}
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", convID).Build()
	update := bson.M{
		"contact_request_status": status,
		"contact_shared":         shared,
		"updated_at":             time.Now().UTC(),
	}

	result, err := r.mongoRepo.Update(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("set contact status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// TouchLastMessage bumps the activity timestamp that orders conversation
// lists. Best-effort from the hot path; callers only log failures.
func (r *conversationRepository) TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error {
	convID, err := parseOID(conversationID, ErrInvalidConversationID)
	if err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", convID).Build()
	_, err = r.mongoRepo.Update(ctx, filter, bson.M{"last_message_at": at, "updated_at": at})
	if err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	return nil
}

// DeleteConversation hard-deletes the conversation row. Message cascade is
// the service layer's responsibility.
func (r *conversationRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidConversationID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := r.mongoRepo.DeleteByID(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	r.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}
