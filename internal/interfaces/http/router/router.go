// Package router assembles the gin engines of the billing service and the gateway.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// DefaultAPIVersion is the version segment of /api/<version>
const DefaultAPIVersion = "v1"

// Route is one method and path relative to its group
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// RouteGroup is a resource's routes under a shared prefix and middleware
type RouteGroup struct {
	Name       string
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
	children   []*RouteGroup
}

// NewRouteGroup starts an empty group mounted at prefix
func NewRouteGroup(name, prefix string) *RouteGroup {
	return &RouteGroup{Name: name, Prefix: prefix}
}

// Use appends group middleware
func (g *RouteGroup) Use(mw ...gin.HandlerFunc) *RouteGroup {
	g.Middleware = append(g.Middleware, mw...)
	return g
}

func (g *RouteGroup) add(method, p string, h gin.HandlerFunc) *RouteGroup {
	g.Routes = append(g.Routes, Route{Method: method, Path: p, Handler: h})
	return g
}

func (g *RouteGroup) GET(p string, h gin.HandlerFunc) *RouteGroup   { return g.add(http.MethodGet, p, h) }
func (g *RouteGroup) POST(p string, h gin.HandlerFunc) *RouteGroup  { return g.add(http.MethodPost, p, h) }
func (g *RouteGroup) PUT(p string, h gin.HandlerFunc) *RouteGroup   { return g.add(http.MethodPut, p, h) }
func (g *RouteGroup) PATCH(p string, h gin.HandlerFunc) *RouteGroup { return g.add(http.MethodPatch, p, h) }

// Nest adds a child group whose prefix is relative to g
func (g *RouteGroup) Nest(name, prefix string) *RouteGroup {
	child := NewRouteGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

// Mount registers g and its children on parent
func (g *RouteGroup) Mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.Prefix, g.Middleware...)
	for _, r := range g.Routes {
		rg.Handle(r.Method, r.Path, r.Handler)
	}
	for _, child := range g.children {
		child.Mount(rg)
	}
}

// Paths lists "METHOD /full/path" for every route in g, relative to base
func (g *RouteGroup) Paths(base string) []string {
	prefix := path.Join(base, g.Prefix)
	out := make([]string, 0, len(g.Routes))
	for _, r := range g.Routes {
		full := prefix
		if r.Path != "" {
			full = path.Join(prefix, r.Path)
		}
		out = append(out, r.Method+" "+full)
	}
	for _, child := range g.children {
		out = append(out, child.Paths(prefix)...)
	}
	return out
}

// MountAPI registers groups under /api/<version>. An empty version means
// DefaultAPIVersion.
func MountAPI(engine *gin.Engine, version string, groups ...*RouteGroup) {
	if version == "" {
		version = DefaultAPIVersion
	}
	api := engine.Group("/api/" + version)
	for _, g := range groups {
		g.Mount(api)
	}
}
