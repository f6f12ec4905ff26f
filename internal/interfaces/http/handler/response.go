package handler

import "github.com/autoshop/backend/internal/interfaces/http/dto"

// APIResponse is the success envelope as it appears in the API
// documentation. Handlers write dto.Response.
type APIResponse[T any] struct {
	Success bool      `json:"success" example:"true"`
	Data    T         `json:"data,omitempty"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope as documented
// @Description Failure envelope; request_id echoes the correlation id
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
