// Package router is a self-registration registry: handler packages declare
// their route groups in init() and the server flushes the registry into gin
// at startup.
package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// GroupRouter collects routes under a shared path prefix and middleware set.
type GroupRouter struct {
	Path        string
	Routes      []*Route
	Middlewares []gin.HandlerFunc
}

var registered []*GroupRouter

// NewGroupRouter declares a route group and adds it to the registry.
func NewGroupRouter(path string) *GroupRouter {
	g := &GroupRouter{Path: path}
	registered = append(registered, g)
	return g
}

// Use adds middlewares shared by every route in the group.
func (g *GroupRouter) Use(middlewares ...gin.HandlerFunc) *GroupRouter {
	g.Middlewares = append(g.Middlewares, middlewares...)
	return g
}

// AddRoute adds a route to the group.
func (g *GroupRouter) AddRoute(route *Route) *GroupRouter {
	g.Routes = append(g.Routes, route)
	return g
}

// Route is a single endpoint.
type Route struct {
	Path     string
	Method   string
	Handlers []gin.HandlerFunc
}

func NewRoute(path string, method string) *Route {
	return &Route{Path: path, Method: method}
}

// Handle adds handler functions to the route.
func (r *Route) Handle(handlers ...gin.HandlerFunc) *Route {
	r.Handlers = append(r.Handlers, handlers...)
	return r
}

// RegisterAll flushes the registry into the gin engine. The registry is
// cleared afterwards so a second Start cannot double-register.
func RegisterAll(engine *gin.Engine) error {
	for _, g := range registered {
		group := engine.Group(g.Path, g.Middlewares...)
		for _, route := range g.Routes {
			if len(route.Handlers) == 0 {
				return fmt.Errorf("route %s%s has no handler", g.Path, route.Path)
			}
			group.Handle(route.Method, route.Path, route.Handlers...)
		}
	}
	registered = nil
	return nil
}
