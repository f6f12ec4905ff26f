package dto

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// API error codes, ERR_<WHAT>. Each has one HTTP status in statusByCode.
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeUnavailable     = "ERR_UNAVAILABLE"
	ErrCodeTimeout         = "ERR_TIMEOUT"
	ErrCodeNotImplemented  = "ERR_NOT_IMPLEMENTED"
	ErrCodeUnauthorized    = "ERR_UNAUTHORIZED"
	ErrCodeForbidden       = "ERR_FORBIDDEN"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists   = "ERR_ALREADY_EXISTS"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

var statusByCode = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
	ErrCodeTimeout:         http.StatusGatewayTimeout,
	ErrCodeNotImplemented:  http.StatusNotImplemented,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeAlreadyExists:   http.StatusConflict,
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// StatusFor is the HTTP status of an API error code, 500 for codes it
// does not know
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domain error codes (shared.Code*) as API codes
var fromDomain = map[string]string{
	"NOT_FOUND":      ErrCodeNotFound,
	"ALREADY_EXISTS": ErrCodeAlreadyExists,
	"INVALID_INPUT":  ErrCodeInvalidInput,
	"INVALID_STATE":  ErrCodeInvalidState,
}

// CodeFromDomain converts a domain error code. Codes that are already API
// codes, or that it does not know, pass through.
func CodeFromDomain(code string) string {
	if api, ok := fromDomain[code]; ok {
		return api
	}
	return code
}

var fromGRPC = map[codes.Code]string{
	codes.InvalidArgument:    ErrCodeInvalidInput,
	codes.NotFound:           ErrCodeNotFound,
	codes.AlreadyExists:      ErrCodeAlreadyExists,
	codes.FailedPrecondition: ErrCodeInvalidState,
	codes.PermissionDenied:   ErrCodeForbidden,
	codes.Unauthenticated:    ErrCodeUnauthorized,
	codes.ResourceExhausted:  ErrCodeRateLimited,
	codes.Unimplemented:      ErrCodeNotImplemented,
	codes.Unavailable:        ErrCodeUnavailable,
	codes.DeadlineExceeded:   ErrCodeTimeout,
}

// CodeFromGRPC is the API code of a failed downstream call. Unmapped
// codes are internal errors.
func CodeFromGRPC(code codes.Code) string {
	if api, ok := fromGRPC[code]; ok {
		return api
	}
	return ErrCodeInternal
}
