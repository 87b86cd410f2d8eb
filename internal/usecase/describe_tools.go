package usecase

import (
	"log/slog"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// DescribeToolsUseCase projects the registry into the wire-transmissible
// tool list served by the discovery endpoint.
type DescribeToolsUseCase struct {
	registry ToolRegistry
	logger   *slog.Logger
}

// NewDescribeToolsUseCase creates a new DescribeToolsUseCase.
func NewDescribeToolsUseCase(registry ToolRegistry, logger *slog.Logger) *DescribeToolsUseCase {
	return &DescribeToolsUseCase{
		registry: registry,
		logger:   logger.With("usecase", "DescribeTools"),
	}
}

// Execute returns all registered descriptors in registration order.
// It is side-effect-free.
func (uc *DescribeToolsUseCase) Execute() []domain.ToolDescriptor {
	tools := uc.registry.List()
	uc.logger.Debug("Listed tools for discovery.", slog.Int("count", len(tools)))
	return tools
}
