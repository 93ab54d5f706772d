package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atomhudson/allrentr-chat/internal/mailbox"
	"github.com/atomhudson/allrentr-chat/internal/model"
)

type HealthHandler interface {
	GetHealth(c *gin.Context)
}

type healthHandler struct {
	mailbox mailbox.Store
}

func NewHealthHandler(mailboxStore mailbox.Store) HealthHandler {
	return &healthHandler{
		mailbox: mailboxStore,
	}
}

// GetHealth reports liveness. A dead mailbox degrades offline delivery
// but the relay itself keeps working, so the status stays "ok".
func (h *healthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Service:   "allrentr-chat",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Mailbox:   h.mailbox.Ping(c.Request.Context()),
		Status:    "ok",
	})
}
