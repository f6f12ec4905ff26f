package router

import (
	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/interfaces/http/handler"
)

// Resource ids with invoice lookups nested under them
const (
	customersResource  = "customers"
	workOrdersResource = "work-orders"
)

// RegisterGateway mounts the health probe at the root and the invoice and
// forwarded resource routes under /api/v1. It returns the API routes it
// mounted.
func RegisterGateway(engine *gin.Engine, system *handler.SystemHandler, invoices *handler.InvoiceHandler, resources []*handler.ResourceHandler) []string {
	engine.GET("/healthz", system.Healthz)
	engine.GET("/system/info", system.GetSystemInfo)

	groups := GatewayGroups(invoices, resources)
	MountAPI(engine, DefaultAPIVersion, groups...)

	var mounted []string
	for _, g := range groups {
		mounted = append(mounted, g.Paths("/api/"+DefaultAPIVersion)...)
	}
	return mounted
}

// GatewayGroups builds one group for invoices and one per forwarded
// resource. Customer and work-order invoice lookups are mounted even when
// those resources are not forwarded.
func GatewayGroups(invoices *handler.InvoiceHandler, resources []*handler.ResourceHandler) []*RouteGroup {
	groups := []*RouteGroup{
		NewRouteGroup("invoices", "/invoices").
			POST("", invoices.Create).
			GET("", invoices.List).
			GET("/:id", invoices.Get).
			PATCH("/:id/status", invoices.UpdateStatus),
	}

	byID := map[string]*RouteGroup{}
	for _, rh := range resources {
		id := rh.ServiceID()
		if id == handler.BillingServiceID {
			continue
		}
		g := NewRouteGroup(id, "/"+id).
			GET("", rh.List).
			POST("", rh.Create).
			GET("/:id", rh.Get).
			PUT("/:id", rh.Update)
		byID[id] = g
		groups = append(groups, g)
	}

	nested := func(id string) *RouteGroup {
		if g, ok := byID[id]; ok {
			return g
		}
		g := NewRouteGroup(id, "/"+id)
		groups = append(groups, g)
		return g
	}
	nested(customersResource).GET("/:id/invoices", invoices.ListByCustomer)
	nested(workOrdersResource).GET("/:id/invoice", invoices.GetByWorkOrder)

	return groups
}
