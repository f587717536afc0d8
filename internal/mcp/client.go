// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	rkerrors "github.com/recipekit/recipekit/pkg/errors"
)

// DefaultTimeout is the default per-call timeout for MCP tool calls.
const DefaultTimeout = 30 * time.Second

// ToolDefinition describes one tool exposed by a server.
type ToolDefinition struct {
	Name        string
	Description string

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema map[string]interface{}
}

// Client wraps one MCP server connection.
type Client struct {
	config ServerConfig
	client *client.Client
}

// Connect creates a client for the configured server, starts the
// transport, and completes the MCP initialize handshake.
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &rkerrors.MCPError{Server: cfg.Identifier(), Cause: err}
	}

	var (
		mcpClient *client.Client
		err       error
	)
	if cfg.URL != "" {
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		mcpClient, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	} else {
		mcpClient, err = client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	}
	if err != nil {
		return nil, &rkerrors.MCPError{Server: cfg.Identifier(), Cause: err}
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, &rkerrors.MCPError{Server: cfg.Identifier(), Cause: fmt.Errorf("start: %w", err)}
	}

	c := &Client{config: cfg, client: mcpClient}
	if err := c.initialize(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// initialize sends the MCP initialize request.
func (c *Client) initialize(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "recipekit",
				Version: "0.1.0",
			},
		},
	}
	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return &rkerrors.MCPError{Server: c.config.Identifier(), Cause: fmt.Errorf("initialize: %w", err)}
	}
	return nil
}

// Identifier returns the server identifier for logs and errors.
func (c *Client) Identifier() string {
	return c.config.Identifier()
}

// ListTools retrieves the tools exposed by the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, &rkerrors.MCPError{Server: c.config.Identifier(), Cause: fmt.Errorf("list tools: %w", err)}
	}

	tools := make([]ToolDefinition, 0, len(result.Tools))
	for _, tool := range result.Tools {
		def := ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if len(tool.RawInputSchema) > 0 {
			var schema map[string]interface{}
			if err := json.Unmarshal(tool.RawInputSchema, &schema); err == nil {
				def.InputSchema = schema
			}
		}
		if def.InputSchema == nil {
			data, err := json.Marshal(tool.InputSchema)
			if err == nil {
				var schema map[string]interface{}
				if err := json.Unmarshal(data, &schema); err == nil {
					def.InputSchema = schema
				}
			}
		}
		tools = append(tools, def)
	}
	return tools, nil
}

// CallTool invokes a single tool and returns its result value.
// Structured content is preferred when the server provides it; otherwise
// text contents are joined, and a lone JSON text payload is decoded.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, &rkerrors.MCPError{Server: c.config.Identifier(), Tool: name, Cause: err}
	}
	if result.IsError {
		return nil, &rkerrors.MCPError{
			Server: c.config.Identifier(),
			Tool:   name,
			Cause:  fmt.Errorf("tool reported error: %s", flattenContent(result.Content)),
		}
	}

	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}

	text := flattenContent(result.Content)
	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		switch decoded.(type) {
		case map[string]interface{}, []interface{}:
			return decoded, nil
		}
	}
	return text, nil
}

// Close shuts down the transport.
func (c *Client) Close() error {
	return c.client.Close()
}

// flattenContent joins the text parts of a tool result.
func flattenContent(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
