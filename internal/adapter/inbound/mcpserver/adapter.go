// Package mcpserver bridges the tool registry onto a mark3labs/mcp-go
// server so the same tools are reachable over the Model Context Protocol
// (SSE or stdio) as over the plain HTTP API.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/ticketbridge/ticketbridge/internal/domain"
	"github.com/ticketbridge/ticketbridge/internal/usecase"
)

// RegisterAll adds every registered tool to the MCP server, wiring each
// handler through the executor so MCP callers get the same validation and
// envelope semantics as HTTP callers.
func RegisterAll(
	srv *mcpGoServer.MCPServer,
	describeUC *usecase.DescribeToolsUseCase,
	executeUC *usecase.ExecuteToolUseCase,
	logger *slog.Logger,
) {
	log := logger.With("component", "mcp_server_adapter")
	tools := describeUC.Execute()
	for _, desc := range tools {
		srv.AddTool(toMCPTool(desc), makeHandler(desc.Name, executeUC))
		log.Debug("Registered tool with MCP server.", slog.String("tool_name", desc.Name))
	}
	log.Info("Registered tools with MCP server.", slog.Int("count", len(tools)))
}

// toMCPTool converts a descriptor to the mcp-go tool representation.
func toMCPTool(desc domain.ToolDescriptor) mcp.Tool {
	properties := make(map[string]any, len(desc.InputSchema.Parameters))
	for _, p := range desc.InputSchema.Parameters {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Type == domain.ParamArray {
			itemType := p.Items
			if itemType == "" {
				itemType = domain.ParamString
			}
			prop["items"] = map[string]any{"type": string(itemType)}
		}
		properties[p.Name] = prop
	}
	return mcp.Tool{
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   desc.InputSchema.Required(),
		},
	}
}

// makeHandler wraps the executor as an mcp-go tool handler. The invocation
// envelope is serialized into the tool result content, with IsError set for
// failure envelopes, so MCP callers see the same uniform shape.
func makeHandler(toolName string, executeUC *usecase.ExecuteToolUseCase) mcpGoServer.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := executeUC.Execute(ctx, toolName, request.GetArguments())
		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError("failed to encode invocation result: " + err.Error()), nil
		}
		if !result.Success {
			return mcp.NewToolResultError(string(data)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
