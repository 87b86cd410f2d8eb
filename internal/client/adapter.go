package client

import (
	"context"
	"fmt"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// FunctionAdapter is a client-side callable proxy for one discovered tool.
// A decision-making caller (typically an LLM function-calling loop) selects
// adapters by name and schema and calls them without knowing the tool's
// implementation. Adapters are immutable snapshots tied to one discovery
// generation; a refresh produces a new set.
type FunctionAdapter struct {
	descriptor domain.ToolDescriptor
	generation uint64
	client     *Client
}

// Name returns the tool name.
func (a *FunctionAdapter) Name() string { return a.descriptor.Name }

// Description returns the tool description.
func (a *FunctionAdapter) Description() string { return a.descriptor.Description }

// InputSchema returns the tool's declared parameter schema.
func (a *FunctionAdapter) InputSchema() domain.InputSchema { return a.descriptor.InputSchema }

// Generation identifies the discovery generation this adapter belongs to.
func (a *FunctionAdapter) Generation() uint64 { return a.generation }

// Call invokes the tool through the client and returns the envelope.
// If the server has dropped the tool since discovery, the envelope carries
// an UnknownTool error; a stale adapter never silently no-ops.
func (a *FunctionAdapter) Call(ctx context.Context, arguments map[string]any) domain.InvocationResult {
	return a.client.Invoke(ctx, a.descriptor.Name, arguments)
}

// Adapters returns one FunctionAdapter per discovered tool, discovering
// first if needed. Pass forceRefresh to rebuild against a fresh tool list.
func (c *Client) Adapters(ctx context.Context, forceRefresh bool) ([]*FunctionAdapter, error) {
	if _, err := c.Discover(ctx, forceRefresh); err != nil {
		// Stale-but-available: existing adapters can be rebuilt from the
		// cache even when the refresh failed.
		if _, _, ok := c.generationSnapshot(); !ok {
			return nil, err
		}
		c.logger.Warn("Building adapters from stale cache after discovery failure.")
	}

	descriptors, generation, ok := c.generationSnapshot()
	if !ok {
		return nil, fmt.Errorf("no tool descriptors available")
	}

	adapters := make([]*FunctionAdapter, 0, len(descriptors))
	for _, desc := range descriptors {
		adapters = append(adapters, &FunctionAdapter{
			descriptor: desc,
			generation: generation,
			client:     c,
		})
	}
	return adapters, nil
}
