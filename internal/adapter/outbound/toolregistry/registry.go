// Package toolregistry provides the in-memory tool schema registry.
package toolregistry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ticketbridge/ticketbridge/internal/domain"
	"github.com/ticketbridge/ticketbridge/internal/usecase"
)

// Registry is an in-memory implementation of usecase.ToolRegistry.
// All registrations are expected to happen at startup, before concurrent
// invocation traffic begins; the lock only guards against a misordered
// registration racing an early lookup.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*usecase.RegisteredTool
	order  []string
	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*usecase.RegisteredTool),
		logger: logger.With("component", "tool_registry"),
	}
}

// Register stores a descriptor/handler pair and compiles the descriptor's
// schema. A duplicate name or an invalid schema fails immediately, so
// registration errors surface to the registering code at startup.
func (r *Registry) Register(desc domain.ToolDescriptor, handler usecase.ToolHandler) error {
	if desc.Name == "" {
		return fmt.Errorf("register tool: name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("register tool %q: handler must not be nil", desc.Name)
	}

	validator, err := usecase.CompileSchema(desc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("register tool %q: %w", desc.Name, usecase.ErrDuplicateTool)
	}
	r.tools[desc.Name] = &usecase.RegisteredTool{
		Descriptor: desc,
		Handler:    handler,
		Validator:  validator,
	}
	r.order = append(r.order, desc.Name)
	r.logger.Debug("Registered tool.", slog.String("tool_name", desc.Name), slog.Int("total_tools", len(r.order)))
	return nil
}

// Get returns the registered tool or usecase.ErrToolNotFound.
func (r *Registry) Get(name string) (*usecase.RegisteredTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", name, usecase.ErrToolNotFound)
	}
	return tool, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []domain.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name].Descriptor)
	}
	return list
}
