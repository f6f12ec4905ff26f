package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/autoshop/backend/internal/domain/shared"
)

// StatusFromError converts an application error to a gRPC status error.
// Domain errors keep their message; anything else is reported as Internal
// without leaking its text.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		return status.Error(codeFromDomain(de.Code), de.Message)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func codeFromDomain(code string) codes.Code {
	switch code {
	case shared.CodeNotFound:
		return codes.NotFound
	case shared.CodeInvalidInput:
		return codes.InvalidArgument
	case shared.CodeAlreadyExists:
		return codes.AlreadyExists
	case shared.CodeInvalidState:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
