// Package plugin runs auxiliary analysis plugins in dependency order and
// collects their outputs as the opaque key/value map the prompt composer's
// section (D) expects.
package plugin

import "context"

// Context is what a plugin receives to produce its output.
type Context struct {
	UserMessage string
	SessionID   string
	UserID      string
	Extra       map[string]any
}

// Plugin is one auxiliary analysis. Execute receives the shared Context and
// returns a free-text output, or an error if it could not produce one.
//
// DependsOn lists the names of plugins that must run (successfully or not)
// before this one. Dependency ordering is a topological sort over this
// static map, captured once at registration time.
type Plugin interface {
	Name() string
	DependsOn() []string
	Execute(ctx context.Context, pctx Context) (string, error)
}
