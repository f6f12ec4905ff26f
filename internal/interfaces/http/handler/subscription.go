package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/infrastructure/pubsub"
)

// SubscriptionHandler tells the sidecar which topics to deliver and where
type SubscriptionHandler struct {
	subscriptions []pubsub.Subscription
}

// NewSubscriptionHandler serves the subscriptions of pubsubName
func NewSubscriptionHandler(pubsubName string) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: pubsub.Subscriptions(pubsubName)}
}

// List godoc
// @ID           listSubscriptions
// @Summary      Topics the sidecar should deliver
// @Tags         events
// @Produce      json
// @Success      200 {array} pubsub.Subscription
// @Router       /dapr/subscribe [get]
func (h *SubscriptionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.subscriptions)
}
