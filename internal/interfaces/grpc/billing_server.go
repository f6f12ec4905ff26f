// Package grpc serves the billing service over gRPC from its schema file.
package grpc

import (
	"context"
	"fmt"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"

	billingapp "github.com/autoshop/backend/internal/application/billing"
	"github.com/autoshop/backend/internal/infrastructure/rpc"
)

// BillingTarget locates BillingService in the schema directory
var BillingTarget = rpc.ServiceTarget{
	Proto:   "billing/v1/billing.proto",
	Package: "autoshop.billing.v1",
	Service: "BillingService",
	AppID:   "billing-service",
}

// InvoiceAPI is the application surface exposed over gRPC
type InvoiceAPI interface {
	Create(ctx context.Context, input billingapp.CreateInvoiceInput) (*billingapp.InvoiceDTO, error)
	Get(ctx context.Context, id string) (*billingapp.InvoiceDTO, error)
	List(ctx context.Context, input billingapp.ListInvoicesInput) (*billingapp.InvoiceListResult, error)
	UpdateStatus(ctx context.Context, input billingapp.UpdateInvoiceStatusInput) (*billingapp.InvoiceDTO, error)
	ListByCustomer(ctx context.Context, customerID string) (*billingapp.InvoicesResult, error)
	GetByWorkOrder(ctx context.Context, workOrderID string) (*billingapp.InvoiceDTO, error)
}

type idRequest struct {
	ID string `json:"id"`
}

type customerRequest struct {
	CustomerID string `json:"customer_id"`
}

type workOrderRequest struct {
	WorkOrderID string `json:"work_order_id"`
}

// BillingServer binds InvoiceAPI to the BillingService methods
type BillingServer struct {
	api InvoiceAPI
}

// NewBillingServer creates a new billing server
func NewBillingServer(api InvoiceAPI) *BillingServer {
	return &BillingServer{api: api}
}

// ServiceDesc builds the grpc registration for desc. Every method runs
// through mws, outermost first.
func (s *BillingServer) ServiceDesc(desc *rpc.Descriptor, mws ...rpc.Middleware) (*gogrpc.ServiceDesc, error) {
	builders := map[string]func(protoreflect.MessageDescriptor) rpc.UnaryHandler{
		"CreateInvoice": func(out protoreflect.MessageDescriptor) rpc.UnaryHandler {
			return unary(out, s.api.Create)
		},
		"GetInvoice": func(out protoreflect.MessageDescriptor) rpc.UnaryHandler {
			return unary(out, func(ctx context.Context, in idRequest) (*billingapp.InvoiceDTO, error) {
				return s.api.Get(ctx, in.ID)
			})
		},
		"ListInvoices": func(out protoreflect.MessageDescriptor) rpc.UnaryHandler {
			return unary(out, s.api.List)
		},
		"UpdateInvoiceStatus": func(out protoreflect.MessageDescriptor) rpc.UnaryHandler {
			return unary(out, s.api.UpdateStatus)
		},
		"GetInvoicesByCustomer": func(out protoreflect.MessageDescriptor) rpc.UnaryHandler {
			return unary(out, func(ctx context.Context, in customerRequest) (*billingapp.InvoicesResult, error) {
				return s.api.ListByCustomer(ctx, in.CustomerID)
			})
		},
		"GetInvoiceByWorkOrder": func(out protoreflect.MessageDescriptor) rpc.UnaryHandler {
			return unary(out, func(ctx context.Context, in workOrderRequest) (*billingapp.InvoiceDTO, error) {
				return s.api.GetByWorkOrder(ctx, in.WorkOrderID)
			})
		},
	}

	handlers := make(map[string]rpc.UnaryHandler, len(builders))
	for name, build := range builders {
		md, ok := desc.Method(name)
		if !ok {
			return nil, fmt.Errorf("%s does not declare %s", desc.Service.FullName(), name)
		}
		handlers[name] = build(md.Output())
	}
	return rpc.NewServiceDesc(desc, handlers, mws...)
}
