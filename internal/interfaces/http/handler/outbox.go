package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autoshop/backend/internal/application/event"
)

// OutboxAdmin is what the admin endpoints need from the outbox service
type OutboxAdmin interface {
	GetDeadLetterEntries(ctx context.Context, filter event.OutboxFilter) (*event.OutboxListResult, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryDeadEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryAllDeadEntries(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*event.OutboxStatsDTO, error)
}

// OutboxHandler lets operators inspect the outbox and requeue dead entries
type OutboxHandler struct {
	responder
	admin OutboxAdmin
}

// NewOutboxHandler creates an OutboxHandler over admin
func NewOutboxHandler(admin OutboxAdmin) *OutboxHandler {
	return &OutboxHandler{admin: admin}
}

// RetryAllResponse reports how many entries were requeued
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

type entryURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// GetDeadLetterEntries godoc
// @ID           getOutboxDeadLetterEntries
// @Summary      List dead letter entries
// @Description  Entries that exhausted their retries, most recently failed first
// @Tags         outbox
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]event.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /admin/outbox/dead [get]
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var filter event.OutboxFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.badRequest(c, "Invalid query parameters")
		return
	}
	result, err := h.admin.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.failWith(c, err)
		return
	}
	h.page(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetEntry godoc
// @ID           getOutboxEntry
// @Summary      Get an outbox entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /admin/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	if id, ok := h.entryID(c); ok {
		entry, err := h.admin.GetEntry(c.Request.Context(), id)
		h.reply(c, entry, err)
	}
}

// RetryDeadEntry godoc. Only dead entries can be requeued; anything else
// is an invalid state.
// @ID           retryOutboxEntry
// @Summary      Requeue a dead entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /admin/outbox/{id}/retry [post]
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	if id, ok := h.entryID(c); ok {
		entry, err := h.admin.RetryDeadEntry(c.Request.Context(), id)
		h.reply(c, entry, err)
	}
}

// RetryAllDeadEntries godoc
// @ID           retryAllOutboxEntries
// @Summary      Requeue every dead entry
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[RetryAllResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /admin/outbox/dead/retry-all [post]
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	count, err := h.admin.RetryAllDeadEntries(c.Request.Context())
	h.reply(c, RetryAllResponse{Count: count}, err)
}

// GetStats godoc
// @ID           getOutboxStats
// @Summary      Count outbox entries per status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[event.OutboxStatsDTO]
// @Failure      500 {object} ErrorResponse
// @Router       /admin/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.admin.GetStats(c.Request.Context())
	h.reply(c, stats, err)
}

func (h *OutboxHandler) reply(c *gin.Context, data any, err error) {
	if err != nil {
		h.failWith(c, err)
		return
	}
	h.ok(c, data)
}

func (h *OutboxHandler) entryID(c *gin.Context) (uuid.UUID, bool) {
	var uri entryURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.badRequest(c, "Invalid entry ID")
		return uuid.Nil, false
	}
	return uuid.MustParse(uri.ID), true
}
