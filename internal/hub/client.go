package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 60 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	inboundBufSize     = 64                     // per-connection inbound buffer size
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound messages
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

type Client struct {
	ID     string
	userId string
	conn   *websocket.Conn
	hub    *Hub
	egress chan []byte

	// inbound events for this connection are processed by a single
	// goroutine so events keep their arrival order per socket
	inbound chan []byte

	// conversations this connection has joined
	joined   map[string]struct{}
	joinedMu sync.RWMutex

	// cancel or stop goroutine
	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

func newClient(userId string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		ID:             uuid.New().String(),
		userId:         userId,
		conn:           conn,
		hub:            h,
		egress:         make(chan []byte, sendBufSize),
		inbound:        make(chan []byte, inboundBufSize),
		joined:         make(map[string]struct{}),
		cancel:         cancel,
		ctx:            ctx,
		once:           sync.Once{},
		connClosed:     make(chan struct{}),
		connClosedOnce: sync.Once{},
	}
}

// UserID returns the authenticated user this connection belongs to.
func (c *Client) UserID() string {
	return c.userId
}

func (c *Client) Join(conversationId string) {
	c.joinedMu.Lock()
	defer c.joinedMu.Unlock()
	c.joined[conversationId] = struct{}{}
}

func (c *Client) Leave(conversationId string) {
	c.joinedMu.Lock()
	defer c.joinedMu.Unlock()
	delete(c.joined, conversationId)
}

func (c *Client) IsJoined(conversationId string) bool {
	c.joinedMu.RLock()
	defer c.joinedMu.RUnlock()
	_, ok := c.joined[conversationId]
	return ok
}

func (c *Client) JoinedConversations() []string {
	c.joinedMu.RLock()
	defer c.joinedMu.RUnlock()

	ids := make([]string, 0, len(c.joined))
	for id := range c.joined {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) ReadMessages() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, payload, err := c.conn.ReadMessage()
			if err != nil {

				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.hub.logger.Info("client disconnected", zap.String("client_id", c.ID))
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					c.hub.logger.Warn("unexpected close", zap.String("client_id", c.ID), zap.Error(err))
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.hub.logger.Info("client timed out, closing connection", zap.String("client_id", c.ID))
					return
				}

				c.hub.logger.Error("error reading from client", zap.String("client_id", c.ID), zap.Error(err))
				return
			}

			// Non-blocking send into per-client processing queue to
			// avoid blocking the reader
			select {
			case c.inbound <- payload:
				// accepted for processing
			case <-time.After(inboundSendTimeout):
				c.hub.logger.Warn("inbound queue full, dropping client", zap.String("client_id", c.ID))
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// ProcessEvents consumes the inbound queue one event at a time. It is
// the only goroutine that dispatches events for this connection.
func (c *Client) ProcessEvents() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case payload, ok := <-c.inbound:
			if !ok {
				return
			}

			c.hub.handler.HandleEvent(c, payload)
		}
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		// Safe close of connClosed channel using sync.Once
		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case payload, ok := <-c.egress:
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
					c.hub.logger.Debug("connection closed", zap.Error(err))
				}
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Warn("write error", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Warn("ping error", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(pongMsg string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) Close() {
	c.once.Do(func() {
		// Mark as closed BEFORE closing the channel
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()
		close(c.egress)

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
				// WriteMessages closed it properly
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// SendRaw attempts to enqueue an already-marshaled payload to the
// client's egress channel. Returns true if enqueued, false if the
// client is closed or the buffer stayed full past the timeout.
func (c *Client) SendRaw(payload []byte) bool {
	// Check if closed first (fast path)
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- payload:
		return true
	case <-time.After(sendTimeout):
		return false
	}
}
