package event

import "time"

// -----------------------------------------------------------------
// Payloads - Client to Server
// -----------------------------------------------------------------

// JoinConversation marks a conversation as open in the client UI.
type JoinConversation struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (e *JoinConversation) EventType() string { return EventJoinConversation }

// LeaveConversation marks a conversation as closed in the client UI.
type LeaveConversation struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (e *LeaveConversation) EventType() string { return EventLeaveConversation }

// SendMessage carries a new chat message from a participant.
type SendMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType,omitempty"`
}

func (e *SendMessage) EventType() string { return EventSendMessage }

// Typing signals the caller started typing in a conversation.
type Typing struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (e *Typing) EventType() string { return EventTyping }

// StopTyping signals the caller stopped typing.
type StopTyping struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (e *StopTyping) EventType() string { return EventStopTyping }

// MarkRead sets the read timestamp on a message in a conversation.
type MarkRead struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

func (e *MarkRead) EventType() string { return EventMarkRead }

// DeleteMessage soft-deletes one of the caller's own messages.
type DeleteMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

func (e *DeleteMessage) EventType() string { return EventDeleteMessage }

// UserOnline asserts the caller's presence. Sent once after connecting
// and again on every heartbeat tick.
type UserOnline struct {
	Type string `json:"type"`
}

func (e *UserOnline) EventType() string { return EventUserOnline }

func NewJoinConversation(conversationID string) *JoinConversation {
	return &JoinConversation{Type: EventJoinConversation, ConversationID: conversationID}
}

func NewLeaveConversation(conversationID string) *LeaveConversation {
	return &LeaveConversation{Type: EventLeaveConversation, ConversationID: conversationID}
}

func NewSendMessage(conversationID, content, messageType string) *SendMessage {
	return &SendMessage{Type: EventSendMessage, ConversationID: conversationID, Content: content, MessageType: messageType}
}

func NewTyping(conversationID string) *Typing {
	return &Typing{Type: EventTyping, ConversationID: conversationID}
}

func NewStopTyping(conversationID string) *StopTyping {
	return &StopTyping{Type: EventStopTyping, ConversationID: conversationID}
}

func NewMarkRead(conversationID, messageID string) *MarkRead {
	return &MarkRead{Type: EventMarkRead, ConversationID: conversationID, MessageID: messageID}
}

func NewDeleteMessage(conversationID, messageID string) *DeleteMessage {
	return &DeleteMessage{Type: EventDeleteMessage, ConversationID: conversationID, MessageID: messageID}
}

func NewUserOnline() *UserOnline {
	return &UserOnline{Type: EventUserOnline}
}

// -----------------------------------------------------------------
// Payloads - Server to Client
// -----------------------------------------------------------------

// MessagePayload is the wire form of a persisted message, embedded in
// new_message and message_sent events and in mailbox envelopes.
type MessagePayload struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content"`
	MessageType    string     `json:"messageType"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// Connected acknowledges a successful handshake.
type Connected struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	UserID string `json:"userId"`
}

func (e *Connected) EventType() string { return EventConnection }

// JoinedConversation acknowledges a join after any mailbox replay.
type JoinedConversation struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

func (e *JoinedConversation) EventType() string { return EventJoinedConversation }

// NewMessage delivers a counterpart's message.
type NewMessage struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

func (e *NewMessage) EventType() string { return EventNewMessage }

// MessageSent echoes the sender's own message once persisted.
type MessageSent struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

func (e *MessageSent) EventType() string { return EventMessageSent }

// UserTyping forwards a typing indicator to the counterpart.
type UserTyping struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (e *UserTyping) EventType() string { return EventUserTyping }

// UserStoppedTyping forwards the end of a typing indicator.
type UserStoppedTyping struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (e *UserStoppedTyping) EventType() string { return EventUserStoppedTyping }

// MessageRead notifies the original sender that a message was read.
type MessageRead struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

func (e *MessageRead) EventType() string { return EventMessageRead }

// MessageDeleted notifies both participants of a soft delete.
type MessageDeleted struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

func (e *MessageDeleted) EventType() string { return EventMessageDeleted }

// UserWentOnline notifies counterparts that a user connected.
type UserWentOnline struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

func (e *UserWentOnline) EventType() string { return EventUserOnline }

// UserWentOffline notifies counterparts that a user disconnected.
type UserWentOffline struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

func (e *UserWentOffline) EventType() string { return EventUserOffline }

// Error is the soft failure event; the connection stays open.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) EventType() string { return EventError }

func NewConnected(userID string) *Connected {
	return &Connected{Type: EventConnection, Status: "connected", UserID: userID}
}

func NewJoinedConversation(conversationID string) *JoinedConversation {
	return &JoinedConversation{Type: EventJoinedConversation, ConversationID: conversationID}
}

func NewNewMessage(msg MessagePayload) *NewMessage {
	return &NewMessage{Type: EventNewMessage, ConversationID: msg.ConversationID, Message: msg}
}

func NewMessageSent(msg MessagePayload) *MessageSent {
	return &MessageSent{Type: EventMessageSent, ConversationID: msg.ConversationID, Message: msg}
}

func NewUserTyping(conversationID, userID string) *UserTyping {
	return &UserTyping{Type: EventUserTyping, ConversationID: conversationID, UserID: userID}
}

func NewUserStoppedTyping(conversationID, userID string) *UserStoppedTyping {
	return &UserStoppedTyping{Type: EventUserStoppedTyping, ConversationID: conversationID, UserID: userID}
}

func NewMessageRead(conversationID, messageID, readBy string, readAt time.Time) *MessageRead {
	return &MessageRead{Type: EventMessageRead, ConversationID: conversationID, MessageID: messageID, ReadBy: readBy, ReadAt: readAt}
}

func NewMessageDeleted(conversationID, messageID string) *MessageDeleted {
	return &MessageDeleted{Type: EventMessageDeleted, ConversationID: conversationID, MessageID: messageID}
}

func NewUserWentOnline(userID string) *UserWentOnline {
	return &UserWentOnline{Type: EventUserOnline, UserID: userID}
}

func NewUserWentOffline(userID string, lastSeenAt time.Time) *UserWentOffline {
	return &UserWentOffline{Type: EventUserOffline, UserID: userID, LastSeenAt: lastSeenAt}
}

func NewError(message string) *Error {
	return &Error{Type: EventError, Message: message}
}
