package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sandevgo/spyglass/internal/core"
)

// Handler defines a function signature for native tools.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes one native tool a toolset contributes.
type Definition struct {
	Description string
	Schema      string
	Handler     Handler
}

// Toolset is anything that contributes a batch of native tools.
type Toolset interface {
	GetDefinitions() map[string]Definition
}

// Registry aggregates native tools and any number of external tool sources
// (MCP servers) behind the core.ToolSource contract.
type Registry struct {
	mu       sync.RWMutex
	defs     []core.Tool
	handlers map[string]Handler
	sources  []core.ToolSource
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Register(name, description string, schema json.RawMessage, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[name] = handler
	r.defs = append(r.defs, core.Tool{
		Type: "function",
		Function: core.Function{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
	})
}

func (r *Registry) RegisterToolset(t Toolset) {
	for name, def := range t.GetDefinitions() {
		r.Register(name, def.Description, json.RawMessage(def.Schema), def.Handler)
	}
}

// AddSource attaches an external tool source. Sources are consulted after
// native tools for both listing and dispatch.
func (r *Registry) AddSource(src core.ToolSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

func (r *Registry) GetTools(ctx context.Context) ([]core.Tool, error) {
	r.mu.RLock()
	all := make([]core.Tool, len(r.defs))
	copy(all, r.defs)
	sources := make([]core.ToolSource, len(r.sources))
	copy(sources, r.sources)
	r.mu.RUnlock()

	for _, src := range sources {
		tools, err := src.GetTools(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, tools...)
	}
	return all, nil
}

func (r *Registry) CallTool(ctx context.Context, name string, args string) (string, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	sources := make([]core.ToolSource, len(r.sources))
	copy(sources, r.sources)
	r.mu.RUnlock()

	if ok {
		return handler(ctx, json.RawMessage(args))
	}

	for _, src := range sources {
		out, err := src.CallTool(ctx, name, args)
		if errors.Is(err, core.ErrToolNotFound) {
			continue
		}
		return out, err
	}
	return "", fmt.Errorf("%w: %s", core.ErrToolNotFound, name)
}
