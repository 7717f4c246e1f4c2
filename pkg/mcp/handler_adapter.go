package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/arbiterhq/arbiter/pkg/action"
	"github.com/arbiterhq/arbiter/pkg/faults"
	"github.com/arbiterhq/arbiter/pkg/registry"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ToolLister abstracts MCP tool discovery for registration.
type ToolLister interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

// HandlerAdapter wraps an MCP tool to satisfy registry.Handler, so remote
// tools dispatch exactly like local ones.
type HandlerAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
}

// NewHandlerAdapter builds a registry.Handler backed by an MCP tool
// definition and caller.
func NewHandlerAdapter(tool mcp.Tool, caller ToolCaller) (*HandlerAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &HandlerAdapter{tool: tool, caller: caller}, nil
}

// Name returns the MCP tool name.
func (h *HandlerAdapter) Name() string {
	return h.tool.Name
}

// Description returns the MCP tool description.
func (h *HandlerAdapter) Description() string {
	return h.tool.Description
}

// Call invokes the MCP tool after validating required arguments.
func (h *HandlerAdapter) Call(ctx context.Context, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	if err := validateRequiredArgs(h.tool, params); err != nil {
		return "", faults.New(faults.CodeInvalidInput, err.Error(), nil).
			WithContext("tool", h.tool.Name)
	}

	result, err := h.caller.CallTool(ctx, h.tool.Name, params)
	if err != nil {
		return "", err
	}
	return toolResultToOutput(result)
}

// RegisterTools discovers the tools exposed by the client and registers each
// one in the tool namespace. It returns the registered tool names.
func RegisterTools(ctx context.Context, reg *registry.Registry, client interface {
	ToolCaller
	ToolLister
}) ([]string, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		adapter, err := NewHandlerAdapter(tool, client)
		if err != nil {
			return names, err
		}
		if err := reg.Register(action.NamespaceTool, adapter); err != nil {
			return names, err
		}
		names = append(names, tool.Name)
	}
	return names, nil
}

func validateRequiredArgs(tool mcp.Tool, args map[string]any) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	return nil
}

func toolResultToOutput(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("mcp tool result is nil")
	}

	if result.IsError {
		return "", fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}

	if result.StructuredContent != nil {
		encoded, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("encode structured content: %w", err)
		}
		return string(encoded), nil
	}

	return extractTextContent(result.Content), nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ registry.Handler = (*HandlerAdapter)(nil)
