package hub

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/auth"
	"github.com/atomhudson/allrentr-chat/internal/event"
)

const verifyTimeout = 10 * time.Second

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "":
		// non-browser clients
		return true
	case "http://localhost:3000":
		return true
	case "https://www.allrentr.com":
		return true
	default:
		return false
	}
}

// Hub owns the live connection registry and hands every accepted socket
// to the chat handler.
type Hub struct {
	registry *Registry
	handler  *ChatHandler
	verifier auth.Verifier
	logger   *zap.Logger
}

func NewHub(handler *ChatHandler, verifier auth.Verifier, logger *zap.Logger) *Hub {
	return &Hub{
		registry: handler.registry,
		handler:  handler,
		verifier: verifier,
		logger:   logger,
	}
}

// Registry exposes the connection registry to the monitor endpoint.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// ServeWS upgrades the request and authenticates the socket. The
// upgrade happens first so a failed verification can be reported with a
// proper close frame instead of a bare HTTP error the browser cannot
// read.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), verifyTimeout)
	defer cancel()

	userId, err := h.verifier.Verify(ctx, token)
	if err != nil {
		h.logger.Warn("socket authentication failed", zap.Error(err))
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
		return
	}

	client := newClient(userId, conn, h)

	// Last write wins: a newer connection for the same user replaces
	// the old registry entry, the old socket keeps draining until its
	// own pumps exit.
	if prev := h.registry.Register(client); prev != nil {
		h.logger.Info("replaced existing connection for user",
			zap.String("user_id", userId),
			zap.String("old_client_id", prev.ID),
			zap.String("new_client_id", client.ID),
		)
	}

	go client.ReadMessages()
	go client.WriteMessages()
	go client.ProcessEvents()

	client.SendRaw(event.Marshal(event.NewConnected(userId)))

	h.logger.Info("client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", userId),
	)
}

// handleDisconnect runs once per socket when its read pump exits.
func (h *Hub) handleDisconnect(c *Client) {
	h.handler.HandleDisconnect(c)
	h.registry.Unregister(c)
	h.logger.Info("client unregistered",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userId),
	)
}

// Stop closes every live connection.
func (h *Hub) Stop() {
	h.registry.ForEach(func(c *Client) {
		c.Close()
	})
}
