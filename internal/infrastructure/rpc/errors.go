package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnknownService is returned for a service id with no configured target
	ErrUnknownService = errors.New("rpc: unknown service")
	// ErrUnknownMethod is returned before any network I/O when the resolved
	// service has no method of the requested name
	ErrUnknownMethod = errors.New("rpc: unknown method")
	// ErrDescriptorLoad wraps every schema loading failure
	ErrDescriptorLoad = errors.New("rpc: descriptor load failed")
)

// ClientError is the single error type returned for failed remote calls.
// It keeps the gRPC code and the HTTP status the code maps to.
type ClientError struct {
	Message    string
	Code       codes.Code
	HTTPStatus int
	cause      error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap returns the underlying transport error
func (e *ClientError) Unwrap() error {
	return e.cause
}

// GRPCStatus lets status.FromError recover the original code
func (e *ClientError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// HTTPStatusFromCode maps a gRPC code to an HTTP status. Codes without an
// explicit mapping become 500.
func HTTPStatusFromCode(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewClientError wraps any call failure. Context errors map to their gRPC
// codes; other errors without a gRPC status are reported as codes.Unknown.
func NewClientError(err error) *ClientError {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}
	st, ok := status.FromError(err)
	if !ok && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		st = status.FromContextError(err)
	}
	return &ClientError{
		Message:    st.Message(),
		Code:       st.Code(),
		HTTPStatus: HTTPStatusFromCode(st.Code()),
		cause:      err,
	}
}

func newClientErrorf(code codes.Code, format string, args ...any) *ClientError {
	return &ClientError{
		Message:    fmt.Sprintf(format, args...),
		Code:       code,
		HTTPStatus: HTTPStatusFromCode(code),
	}
}
