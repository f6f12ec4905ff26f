package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/autoshop/backend/internal/infrastructure/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const testMethod = "/autoshop.echo.v1.EchoService/Echo"

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func incoming(id string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(correlation.MetadataKey, id))
}

func TestWithCallLogging_Success(t *testing.T) {
	log, logs := observed()
	want := wrapperspb.String("ok")

	var seenID string
	h := WithCallLogging(log, testMethod, func(ctx context.Context, _ proto.Message) (proto.Message, error) {
		seenID = correlation.FromContext(ctx)
		return want, nil
	})

	got, err := h(incoming("corr-1"), wrapperspb.String("in"))
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, "corr-1", seenID)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "rpc call started", entries[0].Message)
	assert.Equal(t, "rpc call succeeded", entries[1].Message)
	for _, e := range entries {
		assert.Equal(t, "corr-1", e.ContextMap()["correlation_id"])
		assert.Equal(t, testMethod, e.ContextMap()["method"])
	}
}

func TestWithCallLogging_GeneratesCorrelationID(t *testing.T) {
	log, logs := observed()

	var seenID string
	h := WithCallLogging(log, testMethod, func(ctx context.Context, _ proto.Message) (proto.Message, error) {
		seenID = correlation.FromContext(ctx)
		return nil, nil
	})
	_, err := h(context.Background(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, seenID)
	assert.Equal(t, seenID, logs.All()[0].ContextMap()["correlation_id"])
}

func TestWithCallLogging_FailureSeverity(t *testing.T) {
	tests := []struct {
		code  codes.Code
		level zapcore.Level
	}{
		{codes.Internal, zapcore.ErrorLevel},
		{codes.Unknown, zapcore.ErrorLevel},
		{codes.DataLoss, zapcore.ErrorLevel},
		{codes.NotFound, zapcore.WarnLevel},
		{codes.InvalidArgument, zapcore.WarnLevel},
		{codes.DeadlineExceeded, zapcore.WarnLevel},
		{codes.FailedPrecondition, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			log, logs := observed()
			wantErr := status.Error(tt.code, "failed")
			h := WithCallLogging(log, testMethod, func(context.Context, proto.Message) (proto.Message, error) {
				return nil, wantErr
			})

			_, err := h(incoming("corr-2"), nil)
			assert.Same(t, wantErr, err)

			failures := logs.FilterMessage("rpc call failed").All()
			require.Len(t, failures, 1)
			assert.Equal(t, tt.level, failures[0].Level)
			assert.Equal(t, tt.code.String(), failures[0].ContextMap()["code"])
		})
	}

	t.Run("plain error counts as unknown", func(t *testing.T) {
		log, logs := observed()
		h := WithCallLogging(log, testMethod, func(context.Context, proto.Message) (proto.Message, error) {
			return nil, errors.New("boom")
		})
		_, _ = h(context.Background(), nil)
		assert.Equal(t, zapcore.ErrorLevel, logs.FilterMessage("rpc call failed").All()[0].Level)
	})
}

func TestWithCallLogging_RecoversPanic(t *testing.T) {
	log, logs := observed()
	h := WithCallLogging(log, testMethod, func(context.Context, proto.Message) (proto.Message, error) {
		panic("nil map write")
	})

	resp, err := h(incoming("corr-3"), nil)
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	panics := logs.FilterMessage("rpc handler panicked").All()
	require.Len(t, panics, 1)
	assert.Equal(t, zapcore.ErrorLevel, panics[0].Level)
	assert.Equal(t, "corr-3", panics[0].ContextMap()["correlation_id"])
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(_ string, next UnaryHandler) UnaryHandler {
			return func(ctx context.Context, req proto.Message) (proto.Message, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	h := Chain(testMethod, func(context.Context, proto.Message) (proto.Message, error) {
		order = append(order, "handler")
		return nil, nil
	}, mark("outer"), mark("inner"))

	_, err := h(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
