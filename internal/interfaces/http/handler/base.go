// Package handler implements the HTTP handlers of the billing service and the gateway.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/rpc"
	"github.com/autoshop/backend/internal/interfaces/http/dto"
	"github.com/autoshop/backend/internal/interfaces/http/middleware"
)

// responder writes the dto envelope. Handlers embed it.
type responder struct{}

func (responder) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (responder) created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (responder) page(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (responder) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetCorrelationID(c)))
}

func (r responder) badRequest(c *gin.Context, message string) {
	r.fail(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// failWith maps err onto a status. Gateway call errors keep the status
// their gRPC code maps to, domain errors use their own code, and anything
// else is a 500 with a generic message.
func (r responder) failWith(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var clientErr *rpc.ClientError
	if errors.As(err, &clientErr) {
		r.fail(c, clientErr.HTTPStatus, dto.CodeFromGRPC(clientErr.Code), clientErr.Message)
		return
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.CodeFromDomain(domainErr.Code)
		r.fail(c, dto.StatusFor(code), code, domainErr.Message)
		return
	}
	r.fail(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
