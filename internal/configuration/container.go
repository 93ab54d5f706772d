package configuration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/atomhudson/allrentr-chat/internal/auth"
	"github.com/atomhudson/allrentr-chat/internal/db"
	"github.com/atomhudson/allrentr-chat/internal/handler"
	"github.com/atomhudson/allrentr-chat/internal/hub"
	"github.com/atomhudson/allrentr-chat/internal/mailbox"
	"github.com/atomhudson/allrentr-chat/internal/model"
	"github.com/atomhudson/allrentr-chat/internal/notify"
	"github.com/atomhudson/allrentr-chat/internal/repo"
	"github.com/atomhudson/allrentr-chat/internal/service"
)

type Container struct {
	ChatHandler   handler.ChatHandler
	HealthHandler handler.HealthHandler
	Hub           *hub.Hub
	Verifier      auth.Verifier
	Notifier      *notify.Sender
	Config        Config
	Logger        *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer indexCancel()
	if err := repo.EnsureConversationIndexes(indexCtx, con, config.ChatDatabase.ConversationsCollection); err != nil {
		logger.Warn("failed to ensure conversation indexes", zap.Error(err))
	}

	conversationRepo := repo.NewConversationRepository(
		con,
		db.NewRepository[model.Conversation](con, config.ChatDatabase.ConversationsCollection),
		logger,
	)
	messageRepo := repo.NewMessageRepository(
		db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection),
		logger,
	)
	presenceRepo := repo.NewPresenceRepository(
		db.NewRepository[model.Presence](con, config.ChatDatabase.PresenceCollection),
		logger,
	)
	notificationRepo := repo.NewNotificationRepository(
		db.NewRepository[model.Notification](con, config.ChatDatabase.NotificationsCollection),
		logger,
	)

	mailboxStore, err := mailbox.New(config.Mailbox.Url, config.Mailbox.Token, logger)
	if err != nil {
		return nil, err
	}
	verifier := auth.NewHTTPVerifier(config.Verifier.Endpoint, config.Verifier.ApiKey, logger)

	chatService := service.NewChatService(conversationRepo, messageRepo, mailboxStore, logger)
	chatHandler := handler.NewChatHandler(chatService)
	healthHandler := handler.NewHealthHandler(mailboxStore)

	hubHandler := hub.NewChatHandler(
		hub.NewRegistry(),
		conversationRepo,
		messageRepo,
		presenceRepo,
		notificationRepo,
		mailboxStore,
		logger,
	)
	h := hub.NewHub(hubHandler, verifier, logger)

	notifier := notify.NewSender(notificationRepo, config.Notify.Endpoint, config.Notify.FrontendBaseUrl, logger)

	return &Container{
		ChatHandler:   chatHandler,
		HealthHandler: healthHandler,
		Hub:           h,
		Verifier:      verifier,
		Notifier:      notifier,
		Config:        *config,
		Logger:        logger,
		mongoClient:   con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Notifier != nil {
		c.Notifier.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
