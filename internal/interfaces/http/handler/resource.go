package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/interfaces/http/dto"
)

// ResourceHandler forwards CRUD requests for one resource to the service
// registered under the same id, using its List, Get, Create and Update
// methods.
type ResourceHandler struct {
	responder
	client    Caller
	serviceID string
}

// NewResourceHandler creates a handler forwarding to serviceID
func NewResourceHandler(client Caller, serviceID string) *ResourceHandler {
	return &ResourceHandler{client: client, serviceID: serviceID}
}

// ServiceID returns the service requests are forwarded to
func (h *ResourceHandler) ServiceID() string {
	return h.serviceID
}

// List godoc
// @ID           listResources
// @Summary      List a forwarded resource
// @Description  Forwarded to the List method of the service configured for the resource
// @Tags         resources
// @Produce      json
// @Param        resource path string true "Resource" Enums(customers, vehicles, parts, work-orders)
// @Param        page query int false "Page number"
// @Param        page_size query int false "Items per page" maximum(100)
// @Param        search query string false "Free-text search"
// @Success      200 {object} APIResponse[any]
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /{resource} [get]
func (h *ResourceHandler) List(c *gin.Context) {
	var query struct {
		Page     int    `form:"page" binding:"omitempty,min=1"`
		PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
		Search   string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "Invalid query parameters")
		return
	}
	h.forward(c, http.StatusOK, "list", map[string]any{
		"page":      query.Page,
		"page_size": query.PageSize,
		"search":    query.Search,
	})
}

// Get godoc
// @ID           getResource
// @Summary      Get one item of a forwarded resource
// @Tags         resources
// @Produce      json
// @Param        resource path string true "Resource" Enums(customers, vehicles, parts, work-orders)
// @Param        id path string true "Item ID"
// @Success      200 {object} APIResponse[any]
// @Failure      404 {object} ErrorResponse
// @Router       /{resource}/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	h.forward(c, http.StatusOK, "get", map[string]string{"id": c.Param("id")})
}

// Create godoc
// @ID           createResource
// @Summary      Create an item of a forwarded resource
// @Tags         resources
// @Accept       json
// @Produce      json
// @Param        resource path string true "Resource" Enums(customers, vehicles, parts, work-orders)
// @Param        request body object true "Item fields, passed through unchanged"
// @Success      201 {object} APIResponse[any]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /{resource} [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	body, ok := h.bindObject(c)
	if !ok {
		return
	}
	h.forward(c, http.StatusCreated, "create", body)
}

// Update godoc. The path id wins over any id in the body.
// @ID           updateResource
// @Summary      Update an item of a forwarded resource
// @Tags         resources
// @Accept       json
// @Produce      json
// @Param        resource path string true "Resource" Enums(customers, vehicles, parts, work-orders)
// @Param        id path string true "Item ID"
// @Param        request body object true "Item fields, passed through unchanged"
// @Success      200 {object} APIResponse[any]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /{resource}/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	body, ok := h.bindObject(c)
	if !ok {
		return
	}
	body["id"] = c.Param("id")
	h.forward(c, http.StatusOK, "update", body)
}

func (h *ResourceHandler) bindObject(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		h.fail(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body must be a JSON object")
		return nil, false
	}
	return body, true
}

func (h *ResourceHandler) forward(c *gin.Context, status int, method string, request any) {
	raw, err := h.client.Call(c.Request.Context(), h.serviceID, method, request)
	if err != nil {
		h.failWith(c, err)
		return
	}
	c.JSON(status, dto.NewSuccessResponse(json.RawMessage(raw)))
}
