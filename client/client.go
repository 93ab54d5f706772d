package client

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/event"
)

// Connection states
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

var (
	reconnectDelay    = 3 * time.Second  // fixed delay between reconnect attempts
	heartbeatInterval = 30 * time.Second // ping period while connected
	typingTimeout     = 3 * time.Second  // idle time before auto stop_typing
	writeTimeout      = 10 * time.Second
)

var (
	ErrClosed       = errors.New("client is closed")
	ErrNotConnected = errors.New("client is not connected")
)

// Client maintains a single websocket to the relay. It reconnects on
// any drop with a fixed delay, keeps a per-conversation message cache,
// and debounces typing indicators.
type Client struct {
	url    string
	token  string
	clock  clock.Clock
	logger *zap.Logger
	dialer *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	connDone       chan struct{}
	state          string
	userId         string
	active         string
	closed         bool
	reconnectTimer *clock.Timer

	writeMu sync.Mutex

	cache *messageCache

	typingMu     sync.Mutex
	typingTimers map[string]*clock.Timer

	onNotification func(event.MessagePayload)
	onEvent        func(event.ServerEvent)
	onStateChange  func(string)
}

type Option func(*Client)

// WithClock replaces the wall clock, used by tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithNotificationHandler is called for a new message from another
// user in a conversation that is not currently open.
func WithNotificationHandler(fn func(event.MessagePayload)) Option {
	return func(c *Client) { c.onNotification = fn }
}

// WithEventHandler is called for every parsed server event.
func WithEventHandler(fn func(event.ServerEvent)) Option {
	return func(c *Client) { c.onEvent = fn }
}

func WithStateHandler(fn func(string)) Option {
	return func(c *Client) { c.onStateChange = fn }
}

func New(url, token string, opts ...Option) *Client {
	c := &Client{
		url:          url,
		token:        token,
		clock:        clock.New(),
		logger:       zap.NewNop(),
		dialer:       websocket.DefaultDialer,
		state:        StateDisconnected,
		cache:        newMessageCache(),
		typingTimers: make(map[string]*clock.Timer),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current connection state.
func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the identity confirmed by the server, empty before
// the first successful handshake.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userId
}

// SetActiveConversation marks the conversation the user is looking at.
// New messages for the active conversation never raise notifications.
func (c *Client) SetActiveConversation(conversationId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = conversationId
}

// Messages returns the cached messages for a conversation, oldest
// first.
func (c *Client) Messages(conversationId string) []event.MessagePayload {
	return c.cache.Messages(conversationId)
}

// Connect starts the connection loop. Returns immediately; the dial
// runs in the background and retries on failure.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.dial()
	return nil
}

func (c *Client) dial() {
	conn, resp, err := c.dialer.Dial(c.url+"?token="+c.token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("dial failed", zap.Error(err))
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connDone = make(chan struct{})
	done := c.connDone
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	// announce presence on every (re)connect
	if err := c.writeEvent(event.NewUserOnline()); err != nil {
		c.logger.Warn("failed to announce presence", zap.Error(err))
	}

	go c.readLoop(conn)
	go c.heartbeat(conn, c.clock.Ticker(heartbeatInterval), done)
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.setStateLocked(StateDisconnected)

	c.reconnectTimer = c.clock.AfterFunc(reconnectDelay, func() {
		if err := c.Connect(); err != nil && !errors.Is(err, ErrClosed) {
			c.logger.Warn("reconnect failed", zap.Error(err))
		}
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn)
			return
		}
		c.dispatch(data)
	}
}

// heartbeat keeps the socket alive and re-asserts presence every 30s,
// so a relay that restarted and lost its presence rows converges again
// without waiting for a reconnect.
func (c *Client) heartbeat(conn *websocket.Conn, ticker *clock.Ticker, done chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
			if err := c.writeEvent(event.NewUserOnline()); err != nil {
				return
			}
		}
	}
}

// handleDrop tears down a dead connection and schedules the retry. A
// stale connection that was already replaced is ignored.
func (c *Client) handleDrop(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		c.scheduleReconnect()
	}
}

// dispatch routes one server event. Unknown event types are ignored so
// a newer server never breaks an older client.
func (c *Client) dispatch(data []byte) {
	ev, err := event.ParseServer(data)
	if err != nil {
		c.logger.Debug("ignoring unrecognized event", zap.Error(err))
		return
	}

	switch ev := ev.(type) {
	case *event.Connected:
		c.mu.Lock()
		c.userId = ev.UserID
		c.mu.Unlock()
	case *event.NewMessage:
		c.cache.Add(ev.Message)
		c.maybeNotify(ev.Message)
	case *event.MessageSent:
		c.cache.Add(ev.Message)
	case *event.MessageRead:
		c.cache.MarkRead(ev.ConversationID, ev.MessageID, ev.ReadAt)
	case *event.MessageDeleted:
		c.cache.Remove(ev.ConversationID, ev.MessageID)
	}

	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func (c *Client) maybeNotify(msg event.MessagePayload) {
	if c.onNotification == nil {
		return
	}

	c.mu.Lock()
	self := c.userId
	active := c.active
	c.mu.Unlock()

	if msg.SenderID == self || msg.ConversationID == active {
		return
	}

	c.onNotification(msg)
}

func (c *Client) writeEvent(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) JoinConversation(conversationId string) error {
	return c.writeEvent(event.NewJoinConversation(conversationId))
}

func (c *Client) LeaveConversation(conversationId string) error {
	return c.writeEvent(event.NewLeaveConversation(conversationId))
}

func (c *Client) SendMessage(conversationId, content string) error {
	return c.writeEvent(event.NewSendMessage(conversationId, content, event.MessageTypeText))
}

func (c *Client) MarkRead(conversationId, messageId string) error {
	return c.writeEvent(event.NewMarkRead(conversationId, messageId))
}

func (c *Client) DeleteMessage(conversationId, messageId string) error {
	return c.writeEvent(event.NewDeleteMessage(conversationId, messageId))
}

// Typing reports keystroke activity. The first call sends a typing
// event; repeated calls only push back the idle timer. After three
// quiet seconds a stop_typing goes out automatically.
func (c *Client) Typing(conversationId string) error {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	if t, ok := c.typingTimers[conversationId]; ok {
		t.Reset(typingTimeout)
		return nil
	}

	if err := c.writeEvent(event.NewTyping(conversationId)); err != nil {
		return err
	}

	c.typingTimers[conversationId] = c.clock.AfterFunc(typingTimeout, func() {
		c.typingMu.Lock()
		delete(c.typingTimers, conversationId)
		c.typingMu.Unlock()

		if err := c.writeEvent(event.NewStopTyping(conversationId)); err != nil {
			c.logger.Debug("failed to send stop_typing", zap.Error(err))
		}
	})
	return nil
}

// StopTyping ends the indicator immediately, e.g. when the message is
// sent.
func (c *Client) StopTyping(conversationId string) error {
	c.typingMu.Lock()
	if t, ok := c.typingTimers[conversationId]; ok {
		t.Stop()
		delete(c.typingTimers, conversationId)
	}
	c.typingMu.Unlock()

	return c.writeEvent(event.NewStopTyping(conversationId))
}

// Close shuts the client down permanently; it never reconnects after.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.setStateLocked(StateDisconnected)

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	conn := c.conn
	c.conn = nil
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	c.mu.Unlock()

	c.typingMu.Lock()
	for id, t := range c.typingTimers {
		t.Stop()
		delete(c.typingTimers, id)
	}
	c.typingMu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		return conn.Close()
	}
	return nil
}

func (c *Client) setStateLocked(state string) {
	if c.state == state {
		return
	}
	c.state = state
	if c.onStateChange != nil {
		go c.onStateChange(state)
	}
}
