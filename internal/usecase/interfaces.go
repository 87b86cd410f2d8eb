package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool already registered")
)

// ToolHandler executes one tool with validated, coerced arguments. It may
// return a *domain.HandlerError to declare a domain-specific failure kind;
// any other error is reported with the generic handler kind.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// RegisteredTool couples a descriptor with its handler and the JSON Schema
// validator compiled from the descriptor at registration time.
type RegisteredTool struct {
	Descriptor domain.ToolDescriptor
	Handler    ToolHandler
	Validator  *jsonschema.Schema
}

// ToolRegistry is the contract for storing and looking up registered tools.
// Registration happens once at startup, before any concurrent invocation
// traffic begins; lookups are read-only after that.
type ToolRegistry interface {
	// Register stores the pair. It returns ErrDuplicateTool if the name is
	// already taken, or a compile error if the descriptor's schema is invalid.
	Register(desc domain.ToolDescriptor, handler ToolHandler) error

	// Get returns the registered tool or ErrToolNotFound.
	Get(name string) (*RegisteredTool, error)

	// List returns all descriptors in registration order.
	List() []domain.ToolDescriptor
}

// CompileSchema compiles a descriptor's input schema into a validator.
// Registries call this once per Register so malformed schemas fail fast at
// startup instead of at call time.
func CompileSchema(desc domain.ToolDescriptor) (*jsonschema.Schema, error) {
	doc, err := desc.InputSchema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema for tool %q: %w", desc.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	resource := desc.Name + ".schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource for tool %q: %w", desc.Name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %q: %w", desc.Name, err)
	}
	return schema, nil
}
