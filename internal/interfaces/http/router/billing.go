package router

import (
	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/infrastructure/pubsub"
	"github.com/autoshop/backend/internal/interfaces/http/handler"
)

// BillingHandlers are the HTTP handlers of the billing service
type BillingHandlers struct {
	System        *handler.SystemHandler
	Subscriptions *handler.SubscriptionHandler
	Events        *handler.EventHandler
	// Outbox is set only when the outbox publisher is in use
	Outbox *handler.OutboxHandler
}

// RegisterBilling mounts the sidecar-facing routes, the health probe and,
// when present, the outbox admin routes.
func RegisterBilling(engine *gin.Engine, h BillingHandlers) {
	engine.GET("/healthz", h.System.Healthz)
	engine.GET("/system/info", h.System.GetSystemInfo)
	engine.GET("/dapr/subscribe", h.Subscriptions.List)
	engine.POST(pubsub.WorkOrderCompletedRoute, h.Events.WorkOrderCompleted)

	if h.Outbox != nil {
		NewRouteGroup("outbox", "/admin/outbox").
			GET("/stats", h.Outbox.GetStats).
			GET("/dead", h.Outbox.GetDeadLetterEntries).
			POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries).
			GET("/:id", h.Outbox.GetEntry).
			POST("/:id/retry", h.Outbox.RetryDeadEntry).
			Mount(&engine.RouterGroup)
	}
}
