package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event Types - Client to Server
const (
	// EventJoinConversation - Client opens a conversation in its UI
	EventJoinConversation = "join_conversation"

	// EventLeaveConversation - Client closes a conversation
	EventLeaveConversation = "leave_conversation"

	// EventSendMessage - Client sends a chat message
	EventSendMessage = "send_message"

	// EventTyping - Client started typing in a conversation
	EventTyping = "typing"

	// EventStopTyping - Client stopped typing
	EventStopTyping = "stop_typing"

	// EventMarkRead - Client marks a message as read
	EventMarkRead = "mark_read"

	// EventDeleteMessage - Client deletes one of its own messages
	EventDeleteMessage = "delete_message"

	// EventUserOnline - Client asserts presence (on connect and on heartbeat)
	EventUserOnline = "user_online"
)

// Event Types - Server to Client
const (
	// EventConnection - Handshake acknowledgement carrying the verified user id
	EventConnection = "connection"

	// EventJoinedConversation - Join acknowledgement, sent after mailbox replay
	EventJoinedConversation = "joined_conversation"

	// EventNewMessage - A message from the counterpart
	EventNewMessage = "new_message"

	// EventMessageSent - Echo of the sender's own persisted message
	EventMessageSent = "message_sent"

	// EventUserTyping - Counterpart started typing
	EventUserTyping = "user_typing"

	// EventUserStoppedTyping - Counterpart stopped typing
	EventUserStoppedTyping = "user_stopped_typing"

	// EventMessageRead - A sent message was marked read
	EventMessageRead = "message_read"

	// EventMessageDeleted - A message was soft-deleted
	EventMessageDeleted = "message_deleted"

	// EventUserOffline - A conversation counterpart went offline
	EventUserOffline = "user_offline"

	// EventError - Soft failure, connection stays open
	EventError = "error"
)

// Message type values carried by send_message and message payloads.
const (
	MessageTypeText    = "text"
	MessageTypeContact = "contact"
	MessageTypeSystem  = "system"
)

var (
	ErrEmptyPayload = errors.New("empty event payload")
	ErrMissingType  = errors.New("event has no type field")
)

// UnknownTypeError reports a type tag outside the expected event set.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// ClientEvent is the closed set of events a connected client may send.
// Adding a new inbound event means adding a payload struct and a case to
// ParseClient, so the router's dispatch stays exhaustive.
type ClientEvent interface {
	clientEvent()
	EventType() string
}

func (*JoinConversation) clientEvent()  {}
func (*LeaveConversation) clientEvent() {}
func (*SendMessage) clientEvent()       {}
func (*Typing) clientEvent()            {}
func (*StopTyping) clientEvent()        {}
func (*MarkRead) clientEvent()          {}
func (*DeleteMessage) clientEvent()     {}
func (*UserOnline) clientEvent()        {}

// ParseClient decodes a raw frame into its typed client event. Frames
// without a type, with an unknown type, or with a malformed body are
// rejected; the caller answers those with an error event and keeps the
// connection open.
func ParseClient(data []byte) (ClientEvent, error) {
	head, err := peekType(data)
	if err != nil {
		return nil, err
	}

	var ev ClientEvent
	switch head {
	case EventJoinConversation:
		ev = &JoinConversation{}
	case EventLeaveConversation:
		ev = &LeaveConversation{}
	case EventSendMessage:
		ev = &SendMessage{}
	case EventTyping:
		ev = &Typing{}
	case EventStopTyping:
		ev = &StopTyping{}
	case EventMarkRead:
		ev = &MarkRead{}
	case EventDeleteMessage:
		ev = &DeleteMessage{}
	case EventUserOnline:
		ev = &UserOnline{}
	default:
		return nil, &UnknownTypeError{Type: head}
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", head, err)
	}
	return ev, nil
}

// ServerEvent is the closed set of events the relay pushes to clients.
type ServerEvent interface {
	serverEvent()
	EventType() string
}

func (*Connected) serverEvent()          {}
func (*JoinedConversation) serverEvent() {}
func (*NewMessage) serverEvent()         {}
func (*MessageSent) serverEvent()        {}
func (*UserTyping) serverEvent()         {}
func (*UserStoppedTyping) serverEvent()  {}
func (*MessageRead) serverEvent()        {}
func (*MessageDeleted) serverEvent()     {}
func (*UserWentOnline) serverEvent()     {}
func (*UserWentOffline) serverEvent()    {}
func (*Error) serverEvent()              {}

// ParseServer decodes a raw frame into its typed server event. The client
// connection manager ignores unknown types rather than failing, so the
// unknown-type error stays distinguishable from a malformed frame.
func ParseServer(data []byte) (ServerEvent, error) {
	head, err := peekType(data)
	if err != nil {
		return nil, err
	}

	var ev ServerEvent
	switch head {
	case EventConnection:
		ev = &Connected{}
	case EventJoinedConversation:
		ev = &JoinedConversation{}
	case EventNewMessage:
		ev = &NewMessage{}
	case EventMessageSent:
		ev = &MessageSent{}
	case EventUserTyping:
		ev = &UserTyping{}
	case EventUserStoppedTyping:
		ev = &UserStoppedTyping{}
	case EventMessageRead:
		ev = &MessageRead{}
	case EventMessageDeleted:
		ev = &MessageDeleted{}
	case EventUserOnline:
		ev = &UserWentOnline{}
	case EventUserOffline:
		ev = &UserWentOffline{}
	case EventError:
		ev = &Error{}
	default:
		return nil, &UnknownTypeError{Type: head}
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", head, err)
	}
	return ev, nil
}

func peekType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("malformed event: %w", err)
	}
	if head.Type == "" {
		return "", ErrMissingType
	}
	return head.Type, nil
}

// Marshal serializes an event for the wire. Events are plain structs with
// the type tag baked in by their constructors, so a failure here is a
// programming error, not a runtime condition.
func Marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("event: marshal %T: %v", v, err))
	}
	return data
}
