package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/atomhudson/allrentr-chat/internal/configuration"
	"github.com/atomhudson/allrentr-chat/internal/handler"
	"github.com/atomhudson/allrentr-chat/internal/hub"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorService := hub.NewMonitorService(container.Hub.Registry())
	monitorHandler := handler.NewMonitorHandler(monitorService)

	monitorGroup := router.Group("/api/chat/monitor")
	{
		monitorGroup.GET("/stats", monitorHandler.GetHubStats)
	}
}
