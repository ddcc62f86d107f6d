// Package handlers registers the gateway's HTTP endpoints.
package handlers

import (
	"github.com/yuanshang000/ds2api/internal/account"
	"github.com/yuanshang000/ds2api/internal/relay"
)

// Deps are the shared services the handlers operate on.
type Deps struct {
	Relay *relay.Relay
	Pool  *account.Pool
}

var deps *Deps

// Init wires the handler dependencies. Must be called before the router
// serves traffic.
func Init(d *Deps) {
	deps = d
}
