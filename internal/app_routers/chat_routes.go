package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/atomhudson/allrentr-chat/internal/configuration"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/api/chat", authRequired(container.Verifier))
	{
		chatRoute.POST("/conversations", container.ChatHandler.CreateConversation)
		chatRoute.GET("/conversations", container.ChatHandler.ListConversations)
		chatRoute.GET("/conversations/:conversationId/messages", container.ChatHandler.GetMessages)
		chatRoute.POST("/conversations/:conversationId/contact", container.ChatHandler.DecideContact)
		chatRoute.DELETE("/conversations/:conversationId", container.ChatHandler.DeleteConversation)
	}
}
