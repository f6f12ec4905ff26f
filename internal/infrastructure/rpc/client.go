package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autoshop/backend/internal/infrastructure/correlation"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	// AppIDMetadataKey is the routing key the sidecar dispatches on
	AppIDMetadataKey = "dapr-app-id"
	// DefaultTimeout bounds a call when neither the caller nor the client sets one
	DefaultTimeout = 10 * time.Second
)

var (
	requestUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}
	responseMarshal  = protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}
)

// Client issues unary calls to domain services through the local sidecar.
// All services share one connection; the sidecar picks the destination
// from the app id metadata.
type Client struct {
	conn     *grpc.ClientConn
	registry *Registry
	services map[string]ServiceTarget
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *Metrics
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	dialOptions []grpc.DialOption
	timeout     time.Duration
	logger      *zap.Logger
	metrics     *Metrics
}

// WithDialOptions appends gRPC dial options
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *clientOptions) {
		o.dialOptions = append(o.dialOptions, opts...)
	}
}

// WithDefaultTimeout sets the timeout used when a call sets none
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithMetrics records per-call metrics
func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) {
		o.metrics = m
	}
}

// NewClient creates a client bound to the sidecar gRPC address. services
// maps service ids, as used by callers, to their targets.
func NewClient(sidecarAddr string, registry *Registry, services map[string]ServiceTarget, opts ...Option) (*Client, error) {
	o := clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, o.dialOptions...)

	conn, err := grpc.NewClient(sidecarAddr, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sidecar connection: %w", err)
	}

	targets := make(map[string]ServiceTarget, len(services))
	for id, t := range services {
		targets[id] = t
	}

	return &Client{
		conn:     conn,
		registry: registry,
		services: targets,
		timeout:  o.timeout,
		logger:   o.logger,
		metrics:  o.metrics,
	}, nil
}

// CallOption adjusts a single call
type CallOption func(*callOptions)

type callOptions struct {
	timeout       time.Duration
	correlationID string
}

// WithTimeout overrides the call timeout
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithCorrelationID sets the correlation id sent with the call. Without it
// the id stored in the context is used, or a new one is generated.
func WithCorrelationID(id string) CallOption {
	return func(o *callOptions) {
		o.correlationID = id
	}
}

// Close releases the sidecar connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Services returns the configured service ids
func (c *Client) Services() []string {
	ids := make([]string, 0, len(c.services))
	for id := range c.services {
		ids = append(ids, id)
	}
	return ids
}

// Call invokes method on the service registered as serviceID. request may
// be nil, raw JSON ([]byte or json.RawMessage), a proto.Message, or any
// value encoding/json can marshal. The response is the protobuf JSON
// mapping of the reply using the schema's field names.
func (c *Client) Call(ctx context.Context, serviceID, method string, request any, opts ...CallOption) (json.RawMessage, error) {
	desc, md, err := c.resolve(ctx, serviceID, method)
	if err != nil {
		return nil, err
	}

	req := dynamicpb.NewMessage(md.Input())
	if err := fillRequest(req, request); err != nil {
		return nil, newClientErrorf(codes.InvalidArgument, "invalid request for %s: %v", FullMethod(md), err)
	}
	resp := dynamicpb.NewMessage(md.Output())

	if err := c.invoke(ctx, desc, md, req, resp, opts); err != nil {
		return nil, err
	}

	out, err := responseMarshal.Marshal(resp)
	if err != nil {
		return nil, newClientErrorf(codes.Internal, "encode response of %s: %v", FullMethod(md), err)
	}
	return out, nil
}

// Invoke is Call for callers holding typed messages
func (c *Client) Invoke(ctx context.Context, serviceID, method string, req, resp proto.Message, opts ...CallOption) error {
	desc, md, err := c.resolve(ctx, serviceID, method)
	if err != nil {
		return err
	}
	return c.invoke(ctx, desc, md, req, resp, opts)
}

func (c *Client) resolve(ctx context.Context, serviceID, method string) (*Descriptor, protoreflect.MethodDescriptor, error) {
	target, ok := c.services[serviceID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownService, serviceID)
	}
	desc, err := c.registry.Resolve(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	md, ok := desc.Method(method)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s has no method %q", ErrUnknownMethod, desc.Service.FullName(), method)
	}
	return desc, md, nil
}

func (c *Client) invoke(ctx context.Context, desc *Descriptor, md protoreflect.MethodDescriptor, req, resp proto.Message, opts []CallOption) error {
	o := callOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = c.timeout
	}

	correlationID := correlation.Sanitize(o.correlationID)
	if correlationID == "" {
		ctx, correlationID = correlation.Ensure(ctx)
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		AppIDMetadataKey, desc.TargetAppID,
		correlation.MetadataKey, correlationID,
	)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	fullMethod := FullMethod(md)
	start := time.Now()
	err := c.conn.Invoke(ctx, fullMethod, req, resp)
	elapsed := time.Since(start)

	code := status.Code(err)
	c.metrics.record(ctx, desc.TargetAppID, fullMethod, code, elapsed)

	if err != nil {
		clientErr := NewClientError(err)
		c.logger.Debug("rpc call failed",
			zap.String("method", fullMethod),
			zap.String("app_id", desc.TargetAppID),
			zap.String("correlation_id", correlationID),
			zap.String("code", clientErr.Code.String()),
			zap.Int("http_status", clientErr.HTTPStatus),
			zap.Duration("duration", elapsed),
		)
		return clientErr
	}

	c.logger.Debug("rpc call completed",
		zap.String("method", fullMethod),
		zap.String("app_id", desc.TargetAppID),
		zap.String("correlation_id", correlationID),
		zap.Duration("duration", elapsed),
	)
	return nil
}

func fillRequest(req *dynamicpb.Message, request any) error {
	var body []byte
	switch v := request.(type) {
	case nil:
		return nil
	case json.RawMessage:
		body = v
	case []byte:
		body = v
	case proto.Message:
		b, err := protojson.Marshal(v)
		if err != nil {
			return err
		}
		body = b
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		body = b
	}
	if len(body) == 0 {
		return nil
	}
	return requestUnmarshal.Unmarshal(body, req)
}
