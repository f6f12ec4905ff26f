package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/autoshop/backend/internal/infrastructure/rpc"
	"github.com/autoshop/backend/internal/interfaces/http/dto"
)

// BillingServiceID is the rpc service id of the billing service
const BillingServiceID = "billing"

// Caller invokes a method of a configured service with a JSON request
type Caller interface {
	Call(ctx context.Context, serviceID, method string, request any, opts ...rpc.CallOption) (json.RawMessage, error)
}

// InvoiceHandler exposes the billing service's invoices over REST
type InvoiceHandler struct {
	responder
	client Caller
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(client Caller) *InvoiceHandler {
	return &InvoiceHandler{client: client}
}

// LineItemRequest is one invoice line in a create request
type LineItemRequest struct {
	Type           string          `json:"type" binding:"required,oneof=part labor"`
	Description    string          `json:"description" binding:"required,max=500"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents" binding:"min=0"`
}

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	CustomerID  string            `json:"customer_id" binding:"required"`
	WorkOrderID string            `json:"work_order_id,omitempty"`
	LineItems   []LineItemRequest `json:"line_items" binding:"dive"`
	TaxRate     *decimal.Decimal  `json:"tax_rate,omitempty"`
	Currency    string            `json:"currency,omitempty" binding:"omitempty,len=3"`
	DueDays     *int32            `json:"due_days,omitempty" binding:"omitempty,min=0,max=365"`
	Notes       string            `json:"notes,omitempty"`
}

// UpdateInvoiceStatusRequest is the body of PATCH /invoices/:id/status
type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type invoiceListReply struct {
	Invoices json.RawMessage `json:"invoices"`
	Total    int64           `json:"total,string"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type invoicesReply struct {
	Invoices json.RawMessage `json:"invoices"`
}

// Create godoc
// @ID           createInvoice
// @Summary      Create an invoice
// @Description  Issue a draft invoice through the billing service. Missing line totals are computed from quantity and unit price.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body CreateInvoiceRequest true "Invoice to create"
// @Success      201 {object} APIResponse[any]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Failure      504 {object} ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}

	raw, err := h.client.Call(c.Request.Context(), BillingServiceID, "createInvoice", req)
	if err != nil {
		h.failWith(c, err)
		return
	}
	h.created(c, raw)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Description  One page of invoices, newest first, optionally filtered by status
// @Tags         invoices
// @Produce      json
// @Param        status query string false "Invoice status" Enums(draft, sent, paid, overdue, cancelled)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]any]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	query := dto.NewInvoiceListQuery()
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "Invalid query parameters")
		return
	}

	raw, err := h.client.Call(c.Request.Context(), BillingServiceID, "listInvoices", map[string]any{
		"status":    query.Status,
		"page":      query.Page,
		"page_size": query.PageSize,
	})
	if err != nil {
		h.failWith(c, err)
		return
	}

	var reply invoiceListReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		h.failWith(c, err)
		return
	}
	h.page(c, reply.Invoices, reply.Total, reply.Page, reply.PageSize)
}

// Get godoc
// @ID           getInvoice
// @Summary      Get an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[any]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	h.forward(c, "getInvoice", map[string]string{"id": c.Param("id")})
}

// UpdateStatus godoc
// @ID           updateInvoiceStatus
// @Summary      Change an invoice's status
// @Description  Moving to paid stamps the payment time and publishes invoice.paid
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body UpdateInvoiceStatusRequest true "Target status"
// @Success      200 {object} APIResponse[any]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /invoices/{id}/status [patch]
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	var req UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	h.forward(c, "updateInvoiceStatus", map[string]string{"id": c.Param("id"), "status": req.Status})
}

// ListByCustomer godoc
// @ID           listCustomerInvoices
// @Summary      List a customer's invoices
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200 {object} APIResponse[[]any]
// @Failure      400 {object} ErrorResponse
// @Router       /customers/{id}/invoices [get]
func (h *InvoiceHandler) ListByCustomer(c *gin.Context) {
	raw, err := h.client.Call(c.Request.Context(), BillingServiceID, "getInvoicesByCustomer",
		map[string]string{"customer_id": c.Param("id")})
	if err != nil {
		h.failWith(c, err)
		return
	}

	var reply invoicesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		h.failWith(c, err)
		return
	}
	h.ok(c, reply.Invoices)
}

// GetByWorkOrder godoc
// @ID           getWorkOrderInvoice
// @Summary      Get the invoice of a work order
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Work order ID"
// @Success      200 {object} APIResponse[any]
// @Failure      404 {object} ErrorResponse
// @Router       /work-orders/{id}/invoice [get]
func (h *InvoiceHandler) GetByWorkOrder(c *gin.Context) {
	h.forward(c, "getInvoiceByWorkOrder", map[string]string{"work_order_id": c.Param("id")})
}

func (h *InvoiceHandler) forward(c *gin.Context, method string, request any) {
	raw, err := h.client.Call(c.Request.Context(), BillingServiceID, method, request)
	if err != nil {
		h.failWith(c, err)
		return
	}
	h.ok(c, raw)
}
