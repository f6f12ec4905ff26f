package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/infrastructure/correlation"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// UnaryHandler serves one unary method
type UnaryHandler func(ctx context.Context, req proto.Message) (proto.Message, error)

// Middleware decorates the handler of fullMethod
type Middleware func(fullMethod string, next UnaryHandler) UnaryHandler

// Chain applies mws to h. The first middleware is the outermost.
func Chain(fullMethod string, h UnaryHandler, mws ...Middleware) UnaryHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](fullMethod, h)
	}
	return h
}

// CallLogging returns a Middleware wrapping every method with WithCallLogging
func CallLogging(log *zap.Logger) Middleware {
	return func(fullMethod string, next UnaryHandler) UnaryHandler {
		return WithCallLogging(log, fullMethod, next)
	}
}

// WithCallLogging logs the start and the outcome of every call. The
// correlation id is read from the inbound metadata, or generated, and put
// into the context passed to next. Failures log at error level only for
// codes that denote a server fault. A panic in next is logged with its
// stack and returned as codes.Internal; otherwise the response and error
// are passed through unchanged.
func WithCallLogging(log *zap.Logger, fullMethod string, next UnaryHandler) UnaryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req proto.Message) (resp proto.Message, err error) {
		ctx, callLog := logger.WithCorrelationID(ctx, log, incomingCorrelationID(ctx))
		callLog = callLog.With(zap.String("method", fullMethod))
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				callLog.Error("rpc handler panicked",
					zap.Any("panic", r),
					zap.Duration("duration", time.Since(start)),
					zap.Stack("stack"),
				)
				resp = nil
				err = status.Error(codes.Internal, fmt.Sprintf("internal error in %s", fullMethod))
			}
		}()

		callLog.Info("rpc call started")

		resp, err = next(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			code := status.Code(err)
			if ce := callLog.Check(failureLevel(code), "rpc call failed"); ce != nil {
				ce.Write(
					zap.String("code", code.String()),
					zap.Duration("duration", elapsed),
					zap.Error(err),
				)
			}
			return resp, err
		}

		callLog.Info("rpc call succeeded", zap.Duration("duration", elapsed))
		return resp, nil
	}
}

// failureLevel escalates to error only for codes that denote a server fault
func failureLevel(code codes.Code) zapcore.Level {
	switch code {
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

func incomingCorrelationID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(correlation.MetadataKey) {
		if id := correlation.Sanitize(v); id != "" {
			return id
		}
	}
	return ""
}
