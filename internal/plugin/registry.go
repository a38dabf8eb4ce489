package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry holds the registered plugins and computes their run order.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds p to the registry. Registering a plugin under a name that
// is already taken replaces the previous registration. p.DependsOn is read
// once here and that list is used for every later ordering.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = staticDeps{Plugin: p, deps: append([]string(nil), p.DependsOn()...)}
}

// staticDeps pins a plugin's dependency list to the value captured at
// registration.
type staticDeps struct {
	Plugin
	deps []string
}

func (s staticDeps) DependsOn() []string { return s.deps }

// RunAll executes every registered plugin in dependency order and returns a
// name -> output map. A plugin whose Execute call fails is logged and
// omitted from the result rather than aborting the run, matching the "core
// consumes plugin outputs as opaque key/value maps" contract — a failing
// plugin should not be able to break prompt composition.
func (r *Registry) RunAll(ctx context.Context, pctx Context) map[string]string {
	r.mu.RLock()
	plugins := make(map[string]Plugin, len(r.plugins))
	for name, p := range r.plugins {
		plugins[name] = p
	}
	r.mu.RUnlock()

	layers := layeredOrder(plugins)

	outputs := make(map[string]string, len(plugins))
	var outputsMu sync.Mutex

	for _, layer := range layers {
		eg, egCtx := errgroup.WithContext(ctx)
		for _, name := range layer {
			p := plugins[name]
			eg.Go(func() error {
				out, err := p.Execute(egCtx, pctx)
				if err != nil {
					slog.Warn("plugin: execute failed, omitting from output", "plugin", p.Name(), "error", err)
					return nil
				}
				outputsMu.Lock()
				outputs[p.Name()] = out
				outputsMu.Unlock()
				return nil
			})
		}
		// Errors are swallowed per-plugin above, so Wait always returns nil;
		// cancellation of ctx is checked after each layer and stops the run.
		_ = eg.Wait()
		if err := ctx.Err(); err != nil {
			slog.Warn("plugin: run cancelled", "error", err)
			break
		}
	}

	return outputs
}

// layeredOrder groups plugins into dependency layers via Kahn's algorithm:
// layer 0 has no dependencies, layer 1 depends only on layer 0, and so on.
// Plugins within a layer have no ordering constraint between them and may
// run concurrently.
//
// If a cycle is detected, the remaining plugins (those that never reach
// zero in-degree) are logged and appended as one final layer in
// name-sorted order, breaking the cycle arbitrarily rather than silently
// looping forever.
func layeredOrder(plugins map[string]Plugin) [][]string {
	inDegree := make(map[string]int, len(plugins))
	dependents := make(map[string][]string, len(plugins))

	for name, p := range plugins {
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
		for _, dep := range p.DependsOn() {
			if _, known := plugins[dep]; !known {
				// Unknown dependency: ignore it rather than blocking the plugin
				// forever.
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var layers [][]string
	remaining := len(plugins)
	processed := make(map[string]bool, len(plugins))

	for remaining > 0 {
		var layer []string
		for name, deg := range inDegree {
			if deg == 0 && !processed[name] {
				layer = append(layer, name)
			}
		}
		if len(layer) == 0 {
			break // cycle: no zero-in-degree node left
		}
		sort.Strings(layer)
		for _, name := range layer {
			processed[name] = true
			remaining--
			for _, dep := range dependents[name] {
				inDegree[dep]--
			}
		}
		layers = append(layers, layer)
	}

	if remaining > 0 {
		var cyclic []string
		for name := range plugins {
			if !processed[name] {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		slog.Warn("plugin: dependency cycle detected, breaking arbitrarily", "plugins", cyclic)
		layers = append(layers, cyclic)
	}

	return layers
}

// Order returns the flat run order (layers concatenated) for inspection and
// testing; RunAll uses layeredOrder directly to exploit intra-layer
// concurrency.
func (r *Registry) Order() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layers := layeredOrder(r.plugins)
	var flat []string
	for _, layer := range layers {
		flat = append(flat, layer...)
	}
	return flat
}
