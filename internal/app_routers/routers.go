package approuters

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/auth"
	"github.com/atomhudson/allrentr-chat/internal/configuration"
)

// StartServer runs the relay on a single port: the websocket upgrade,
// the health probe, and the chat REST API all share one listener.
// Blocks until SIGINT/SIGTERM, then shuts down gracefully.
func StartServer(container *configuration.Container) {
	logger := container.Logger

	container.Notifier.Start(context.Background())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", container.Config.Server.Port),
		Handler:      createRouter(container),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("server starting", zap.Int("port", container.Config.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	container.Hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("graceful shutdown complete")
}

func createRouter(container *configuration.Container) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://www.allrentr.com"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", container.HealthHandler.GetHealth)
	router.GET("/health", container.HealthHandler.GetHealth)

	// The socket carries its token in the query string; the hub
	// verifies it after the upgrade.
	router.GET("/"+container.Config.Server.SocketRoute, func(c *gin.Context) {
		container.Hub.ServeWS(c.Writer, c.Request)
	})

	ChatRouters(router, container)
	MonitorRouters(router, container)

	return router
}

// authRequired verifies the caller's bearer token and stores the
// resolved user id on the request context.
func authRequired(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		userId, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		c.Set("userId", userId)
		c.Next()
	}
}
