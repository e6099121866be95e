// Package bridge connects to the downstream workflow-storage service
// over MCP. The conversation layer uses it to fetch workflow specs for
// context and to learn which tools the service advertises.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrWorkflowNotFound is returned when the workflow service has no spec
// for the requested id.
var ErrWorkflowNotFound = errors.New("bridge: workflow not found")

// ToolInfo describes one tool advertised by the workflow service.
type ToolInfo struct {
	Name        string
	Description string
}

// Client is the bridge contract consumed by the gateway.
type Client interface {
	FetchWorkflow(ctx context.Context, workflowID string) (string, error)
	ListTools(ctx context.Context) ([]ToolInfo, error)
	Close() error
}

// Compile-time check that MCPBridge satisfies Client.
var _ Client = (*MCPBridge)(nil)

// MCPBridge talks to the workflow service over streamable HTTP MCP.
type MCPBridge struct {
	client *client.Client
	logger *slog.Logger
}

// Dial connects to the workflow service and performs the MCP handshake.
func Dial(ctx context.Context, baseURL string, logger *slog.Logger) (*MCPBridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("bridge: create client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("bridge: start transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "flowsmith", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("bridge: initialize: %w", err)
	}

	return &MCPBridge{client: c, logger: logger.With("component", "bridge")}, nil
}

// FetchWorkflow calls the service's get_workflow tool and returns the
// raw spec payload. The payload is passed through for context rendering,
// never validated or mutated here.
func (b *MCPBridge) FetchWorkflow(ctx context.Context, workflowID string) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = "get_workflow"
	req.Params.Arguments = map[string]any{"workflow_id": workflowID}

	res, err := b.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("bridge: call get_workflow: %w", err)
	}
	if res.IsError {
		return "", fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	var parts []string
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	return strings.Join(parts, "\n"), nil
}

// ListTools returns the tools the workflow service advertises.
func (b *MCPBridge) ListTools(ctx context.Context) ([]ToolInfo, error) {
	res, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("bridge: list tools: %w", err)
	}

	tools := make([]ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description})
	}
	return tools, nil
}

// Close shuts down the MCP transport.
func (b *MCPBridge) Close() error {
	return b.client.Close()
}

// FormatToolsReference renders a tool list as the composer's common
// tools block.
func FormatToolsReference(tools []ToolInfo) string {
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available tools (call them, do not just describe them):\n")
	for _, t := range tools {
		desc := t.Description
		if i := strings.IndexByte(desc, '\n'); i >= 0 {
			desc = desc[:i]
		}
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, desc)
	}
	return strings.TrimRight(b.String(), "\n")
}
