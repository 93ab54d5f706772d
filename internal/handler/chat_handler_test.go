package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/model"
	"github.com/atomhudson/allrentr-chat/internal/service"
)

type stubChatService struct {
	conv      *model.Conversation
	created   bool
	convs     []model.Conversation
	messages  *db.PaginatedResult[model.Message]
	err       error
	deletedID string
}

func (s *stubChatService) GetOrCreateConversation(context.Context, string, string, string) (*model.Conversation, bool, error) {
	return s.conv, s.created, s.err
}

func (s *stubChatService) ListConversations(context.Context, string) ([]model.Conversation, error) {
	return s.convs, s.err
}

func (s *stubChatService) GetMessages(context.Context, string, string, int64) (*db.PaginatedResult[model.Message], error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

func (s *stubChatService) DecideContact(context.Context, string, string, bool) (*model.Conversation, error) {
	return s.conv, s.err
}

func (s *stubChatService) DeleteConversation(_ context.Context, conversationID, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.deletedID = conversationID
	return nil
}

func testRouter(svc service.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// stand-in for the verified identity middleware
	router.Use(func(c *gin.Context) {
		c.Set("userId", "leaser")
	})

	h := NewChatHandler(svc)
	router.POST("/api/chat/conversations", h.CreateConversation)
	router.GET("/api/chat/conversations", h.ListConversations)
	router.GET("/api/chat/conversations/:conversationId/messages", h.GetMessages)
	router.POST("/api/chat/conversations/:conversationId/contact", h.DecideContact)
	router.DELETE("/api/chat/conversations/:conversationId", h.DeleteConversation)
	return router
}

func TestCreateConversationCreated(t *testing.T) {
	svc := &stubChatService{
		conv: &model.Conversation{
			ID:        primitive.NewObjectID(),
			ListingID: "listing-1",
			OwnerID:   "owner",
			LeaserID:  "leaser",
		},
		created: true,
	}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/conversations",
		strings.NewReader(`{"listingId":"listing-1","ownerId":"owner"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateConversationValidation(t *testing.T) {
	router := testRouter(&stubChatService{})

	// missing ownerId
	req := httptest.NewRequest(http.MethodPost, "/api/chat/conversations",
		strings.NewReader(`{"listingId":"listing-1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing ownerId, got %d", w.Code)
	}

	// caller cannot converse with themselves
	req = httptest.NewRequest(http.MethodPost, "/api/chat/conversations",
		strings.NewReader(`{"listingId":"listing-1","ownerId":"leaser"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for self-conversation, got %d", w.Code)
	}
}

func TestGetMessagesPagination(t *testing.T) {
	svc := &stubChatService{
		messages: &db.PaginatedResult[model.Message]{
			Data: []model.Message{{
				ID:          primitive.NewObjectID(),
				SenderID:    "owner",
				Content:     "hello",
				MessageType: "text",
				CreatedAt:   time.Now().UTC(),
			}},
			Total:      1,
			Page:       1,
			TotalPages: 1,
		},
	}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations/abc/messages?page=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Messages []json.RawMessage `json:"messages"`
		Total    int64             `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 1 || body.Total != 1 {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/conversations/abc/messages?page=zero", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad page, got %d", w.Code)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrConversationNotFound, http.StatusNotFound},
		{service.ErrNotParticipant, http.StatusForbidden},
		{service.ErrNotOwner, http.StatusForbidden},
		{service.ErrAlreadyDecided, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := testRouter(&stubChatService{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/api/chat/conversations/abc/contact",
			strings.NewReader(`{"approve":true}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Errorf("error %v: expected status %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestDeleteConversation(t *testing.T) {
	svc := &stubChatService{}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/conversations/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if svc.deletedID != "abc" {
		t.Errorf("expected delete for abc, got %q", svc.deletedID)
	}
}
