package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/event"
	"github.com/atomhudson/allrentr-chat/internal/mailbox"
	"github.com/atomhudson/allrentr-chat/internal/model"
	"github.com/atomhudson/allrentr-chat/internal/repo"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant of the conversation")
	ErrNotOwner             = errors.New("only the listing owner can decide a contact request")
	ErrAlreadyDecided       = errors.New("contact request already decided")
)

type ChatService interface {
	GetOrCreateConversation(ctx context.Context, listingID, ownerID, leaserID string) (*model.Conversation, bool, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	GetMessages(ctx context.Context, conversationID, userID string, page int64) (*db.PaginatedResult[model.Message], error)
	DecideContact(ctx context.Context, conversationID, userID string, approve bool) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) error
}

type chatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	mailbox       mailbox.Store
	logger        *zap.Logger
}

func NewChatService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	mailboxStore mailbox.Store,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		conversations: conversations,
		messages:      messages,
		mailbox:       mailboxStore,
		logger:        logger,
	}
}

func (s *chatService) GetOrCreateConversation(ctx context.Context, listingID, ownerID, leaserID string) (*model.Conversation, bool, error) {
	return s.conversations.GetOrCreate(ctx, listingID, ownerID, leaserID)
}

func (s *chatService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// load fetches the conversation and checks membership.
func (s *chatService) load(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func (s *chatService) GetMessages(ctx context.Context, conversationID, userID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if _, err := s.load(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	return s.messages.FilterMessages(ctx, conversationID, page)
}

// DecideContact records the owner's answer to the leaser's contact
// request and leaves a system message in the conversation so both
// sides see the outcome in their history.
func (s *chatService) DecideContact(ctx context.Context, conversationID, userID string, approve bool) (*model.Conversation, error) {
	conv, err := s.load(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if conv.OwnerID != userID {
		return nil, ErrNotOwner
	}
	if conv.ContactRequestStatus != model.ContactPending {
		return nil, ErrAlreadyDecided
	}

	status := model.ContactRejected
	content := "Contact request declined"
	if approve {
		status = model.ContactApproved
		content = "Contact request approved"
	}

	if err := s.conversations.SetContactStatus(ctx, conversationID, status, approve); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       userID,
		Content:        content,
		MessageType:    event.MessageTypeSystem,
		CreatedAt:      now,
	}

	if _, err := s.messages.InsertMessage(ctx, msg); err != nil {
		s.logger.Error("failed to record contact decision message",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
		)
	} else if err := s.conversations.TouchLastMessage(ctx, conversationID, now); err != nil {
		s.logger.Error("failed to touch conversation", zap.Error(err), zap.String("conversation_id", conversationID))
	}

	conv.ContactRequestStatus = status
	conv.ContactShared = approve
	return conv, nil
}

// DeleteConversation removes the conversation, its messages, and both
// participants' queued mailbox envelopes.
func (s *chatService) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	conv, err := s.load(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	if err := s.messages.DeleteByConversation(ctx, conversationID); err != nil {
		return err
	}

	s.mailbox.Clear(ctx, conv.OwnerID, conversationID)
	s.mailbox.Clear(ctx, conv.LeaserID, conversationID)

	return s.conversations.DeleteConversation(ctx, conversationID)
}
