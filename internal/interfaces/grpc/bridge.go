package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/autoshop/backend/internal/infrastructure/rpc"
)

// Requests and replies cross the boundary as JSON: the dynamic message is
// rendered with schema field names and decoded into the application DTO,
// and the DTO result is parsed back into the method's output type.

var (
	requestMarshal = protojson.MarshalOptions{UseProtoNames: true}
	replyUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// unary adapts an application call taking In and returning Out to a
// schema-driven handler producing messages of type output.
func unary[In, Out any](output protoreflect.MessageDescriptor, call func(context.Context, In) (Out, error)) rpc.UnaryHandler {
	return func(ctx context.Context, req proto.Message) (proto.Message, error) {
		var in In
		if err := decodeRequest(req, &in); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
		}
		out, err := call(ctx, in)
		if err != nil {
			return nil, StatusFromError(err)
		}
		msg, err := encodeReply(output, out)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
		}
		return msg, nil
	}
}

func decodeRequest(req proto.Message, dst any) error {
	data, err := requestMarshal.Marshal(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func encodeReply(output protoreflect.MessageDescriptor, src any) (proto.Message, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(output)
	if err := replyUnmarshal.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%s: %w", output.FullName(), err)
	}
	return msg, nil
}
