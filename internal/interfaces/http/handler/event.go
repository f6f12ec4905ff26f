package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/autoshop/backend/internal/application/billing"
	"github.com/autoshop/backend/internal/domain/billing"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"github.com/autoshop/backend/internal/infrastructure/telemetry"
)

// DeliveryHandler processes one decoded delivery of its topic
type DeliveryHandler interface {
	Topic() string
	Handle(ctx context.Context, delivery billing.Delivery) (billingapp.Result, error)
}

// EventResponse is the body returned to the sidecar
type EventResponse struct {
	Status    string `json:"status"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventHandler receives pub/sub deliveries pushed by the sidecar.
//
// 2xx acknowledges the delivery, including payloads that can never be
// processed; 5xx asks the sidecar to redeliver.
type EventHandler struct {
	workOrderCompleted DeliveryHandler
	metrics            *telemetry.BillingMetrics
}

// NewEventHandler creates the ingestion handler. metrics may be nil.
func NewEventHandler(workOrderCompleted DeliveryHandler, metrics *telemetry.BillingMetrics) *EventHandler {
	return &EventHandler{workOrderCompleted: workOrderCompleted, metrics: metrics}
}

// WorkOrderCompleted godoc
// @ID           workOrderCompleted
// @Summary      Receive a work_order.completed delivery
// @Description  Issues a draft invoice. 200 acknowledges, including payloads that can never be processed; 5xx asks the sidecar to redeliver.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        delivery body object true "CloudEvent envelope or bare work order payload"
// @Success      200 {object} EventResponse
// @Failure      400 {object} EventResponse
// @Failure      413 {object} EventResponse
// @Failure      500 {object} EventResponse
// @Router       /events/work-order-completed [post]
func (h *EventHandler) WorkOrderCompleted(c *gin.Context) {
	ctx := c.Request.Context()
	topic := h.workOrderCompleted.Topic()
	log := logger.GetGinLogger(c).With(zap.String("topic", topic))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Warn("failed to read delivery body", zap.Error(err))
		h.metrics.RecordDelivery(ctx, topic, telemetry.OutcomeRejected)
		c.JSON(status, EventResponse{Status: telemetry.OutcomeRejected, Error: "unreadable body"})
		return
	}

	delivery, err := billing.DecodeDelivery(body)
	if err != nil {
		log.Warn("rejecting malformed delivery", zap.Error(err), zap.Int("body_size", len(body)))
		h.metrics.RecordDelivery(ctx, topic, telemetry.OutcomeRejected)
		c.JSON(http.StatusBadRequest, EventResponse{Status: telemetry.OutcomeRejected, Error: err.Error()})
		return
	}

	result, err := h.workOrderCompleted.Handle(ctx, delivery)
	if err != nil {
		_ = c.Error(err)
		h.metrics.RecordDelivery(ctx, topic, telemetry.OutcomeFailed)
		c.JSON(http.StatusInternalServerError, EventResponse{Status: telemetry.OutcomeFailed, Error: "delivery failed, retry later"})
		return
	}

	h.metrics.RecordDelivery(ctx, topic, string(result.Outcome))
	c.JSON(http.StatusOK, EventResponse{Status: string(result.Outcome), InvoiceID: result.InvoiceID})
}
