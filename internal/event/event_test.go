package event

import (
	"errors"
	"testing"
)

func TestParseClient(t *testing.T) {
	raw := []byte(`{"type":"send_message","conversationId":"abc","content":"hello","messageType":"text"}`)

	ev, err := ParseClient(raw)
	if err != nil {
		t.Fatalf("ParseClient returned error: %v", err)
	}

	msg, ok := ev.(*SendMessage)
	if !ok {
		t.Fatalf("expected *SendMessage, got %T", ev)
	}
	if msg.ConversationID != "abc" {
		t.Errorf("expected conversationId abc, got %q", msg.ConversationID)
	}
	if msg.Content != "hello" {
		t.Errorf("expected content hello, got %q", msg.Content)
	}
	if msg.EventType() != EventSendMessage {
		t.Errorf("expected event type %q, got %q", EventSendMessage, msg.EventType())
	}
}

func TestParseClientUnknownType(t *testing.T) {
	_, err := ParseClient([]byte(`{"type":"call_offer"}`))

	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
	if unknown.Type != "call_offer" {
		t.Errorf("expected type call_offer, got %q", unknown.Type)
	}
}

func TestParseClientRejectsServerEvents(t *testing.T) {
	// new_message only flows server to client
	if _, err := ParseClient([]byte(`{"type":"new_message"}`)); err == nil {
		t.Fatal("expected error for server-only event type")
	}
}

func TestParseClientEmptyAndMissingType(t *testing.T) {
	if _, err := ParseClient(nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := ParseClient([]byte(`{}`)); !errors.Is(err, ErrMissingType) {
		t.Errorf("expected ErrMissingType, got %v", err)
	}
	if _, err := ParseClient([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
}

func TestParseServer(t *testing.T) {
	data := Marshal(NewUserTyping("conv-1", "user-9"))

	ev, err := ParseServer(data)
	if err != nil {
		t.Fatalf("ParseServer returned error: %v", err)
	}

	typing, ok := ev.(*UserTyping)
	if !ok {
		t.Fatalf("expected *UserTyping, got %T", ev)
	}
	if typing.ConversationID != "conv-1" || typing.UserID != "user-9" {
		t.Errorf("unexpected payload: %+v", typing)
	}
}

func TestParseServerSharedOnlineTag(t *testing.T) {
	// user_online is sent by clients as a bare presence assertion and by
	// the server carrying the user id; the server parser must produce
	// the server-side shape.
	ev, err := ParseServer(Marshal(NewUserWentOnline("user-3")))
	if err != nil {
		t.Fatalf("ParseServer returned error: %v", err)
	}

	online, ok := ev.(*UserWentOnline)
	if !ok {
		t.Fatalf("expected *UserWentOnline, got %T", ev)
	}
	if online.UserID != "user-3" {
		t.Errorf("expected user-3, got %q", online.UserID)
	}
}

func TestConstructorsBakeTypeTags(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"connected", Marshal(NewConnected("u1")), EventConnection},
		{"joined", Marshal(NewJoinedConversation("c1")), EventJoinedConversation},
		{"error", Marshal(NewError("boom")), EventError},
		{"join", Marshal(NewJoinConversation("c1")), EventJoinConversation},
		{"mark_read", Marshal(NewMarkRead("c1", "m1")), EventMarkRead},
	}

	for _, tc := range cases {
		head, err := peekType(tc.data)
		if err != nil {
			t.Fatalf("%s: peekType error: %v", tc.name, err)
		}
		if head != tc.want {
			t.Errorf("%s: expected type %q, got %q", tc.name, tc.want, head)
		}
	}
}
