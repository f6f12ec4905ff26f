package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// NewServiceDesc builds a grpc.ServiceDesc for a schema-defined service.
// handlers is keyed by method name as declared in the schema; methods
// without a handler are left unregistered and answer Unimplemented.
// Requests are decoded into dynamic messages of the method's input type.
func NewServiceDesc(desc *Descriptor, handlers map[string]UnaryHandler, mws ...Middleware) (*grpc.ServiceDesc, error) {
	sd := &grpc.ServiceDesc{
		ServiceName: string(desc.Service.FullName()),
		HandlerType: (*any)(nil),
		Metadata:    desc.ServicePath,
	}

	seen := make(map[string]bool, len(handlers))
	methods := desc.Service.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		if md.IsStreamingClient() || md.IsStreamingServer() {
			continue
		}
		name := string(md.Name())
		h, ok := handlers[name]
		if !ok {
			continue
		}
		seen[name] = true

		fullMethod := FullMethod(md)
		input := md.Input()
		chained := Chain(fullMethod, h, mws...)

		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := dynamicpb.NewMessage(input)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return chained(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
				return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
					return chained(ctx, r.(proto.Message))
				})
			},
		})
	}

	for name := range handlers {
		if !seen[name] {
			return nil, fmt.Errorf("%w: %s has no unary method %q", ErrUnknownMethod, desc.Service.FullName(), name)
		}
	}
	return sd, nil
}
