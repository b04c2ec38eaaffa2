// Package toolserver implements in-process tool servers exposed to the
// agent over the control protocol.
//
// The MCP SDK's own Server is built around transports (stdio, HTTP, SSE);
// tool calls here arrive as control requests instead, so Server keeps an
// explicit registration table and invokes handlers directly.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server is a named collection of tools callable by the agent.
type Server struct {
	name    string
	version string

	mu    sync.RWMutex
	order []string
	tools map[string]*entry
}

// entry pairs a tool's metadata with its handler.
type entry struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewServer creates an empty tool server.
func NewServer(name, version string) *Server {
	return &Server{
		name:    name,
		version: version,
		tools:   make(map[string]*entry, 8),
	}
}

// Register adds a tool. Registering the same name twice replaces the
// earlier handler but keeps the original listing position.
func (s *Server) Register(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}

	s.tools[tool.Name] = &entry{tool: tool, handler: handler}
}

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Version returns the server version.
func (s *Server) Version() string { return s.version }

// Info returns the serverInfo object for the MCP initialize response.
func (s *Server) Info() map[string]any {
	return map[string]any{"name": s.name, "version": s.version}
}

// Capabilities returns the capabilities object for the MCP initialize
// response.
func (s *Server) Capabilities() map[string]any {
	return map[string]any{"tools": map[string]any{}}
}

// ToolNames returns registered tool names in registration order.
func (s *Server) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)

	return out
}

// ListTools returns tool metadata in registration order, shaped for the
// control protocol.
func (s *Server) ListTools() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]map[string]any, 0, len(s.order))

	for _, name := range s.order {
		t := s.tools[name]
		toolMap := map[string]any{
			"name":        t.tool.Name,
			"description": t.tool.Description,
		}

		if m := toWireMap(t.tool.InputSchema); m != nil {
			toolMap["inputSchema"] = m
		}

		if m := toWireMap(t.tool.Annotations); m != nil {
			toolMap["annotations"] = m
		}

		result = append(result, toolMap)
	}

	return result
}

// CallTool invokes a tool by name.
//
// Handler faults never surface as errors: an unknown tool, bad input or a
// failing handler all come back as an is_error tool result so the agent
// sees a structured failure instead of a broken control channel.
func (s *Server) CallTool(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return faultResult("Tool not found: " + name), nil
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		return faultResult("Failed to marshal input: " + err.Error()), nil
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		return faultResult("Tool execution failed: " + err.Error()), nil
	}

	return resultToWire(result), nil
}

// faultResult shapes a handler fault as an is_error tool result.
func faultResult(text string) map[string]any {
	return map[string]any{
		"content":  []map[string]any{{"type": "text", "text": text}},
		"is_error": true,
	}
}

// toWireMap round-trips a typed value through JSON into a generic map.
func toWireMap(v any) map[string]any {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}

	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil
	}

	return m
}

// resultToWire converts an MCP tool result to the control protocol shape.
func resultToWire(result *mcp.CallToolResult) map[string]any {
	if result == nil {
		return map[string]any{"content": []map[string]any{}}
	}

	content := make([]map[string]any, 0, len(result.Content))

	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			content = append(content, map[string]any{"type": "text", "text": v.Text})
		case *mcp.ImageContent:
			content = append(content, map[string]any{
				"type": "image", "data": v.Data, "mimeType": v.MIMEType,
			})
		case *mcp.AudioContent:
			content = append(content, map[string]any{
				"type": "audio", "data": v.Data, "mimeType": v.MIMEType,
			})
		case *mcp.ResourceLink:
			content = append(content, map[string]any{
				"type": "resource_link", "uri": v.URI, "name": v.Name,
			})
		case *mcp.EmbeddedResource:
			if v.Resource != nil {
				content = append(content, map[string]any{
					"type": "resource",
					"resource": map[string]any{
						"uri":      v.Resource.URI,
						"mimeType": v.Resource.MIMEType,
						"text":     v.Resource.Text,
					},
				})
			}
		}
	}

	out := map[string]any{"content": content}
	if result.IsError {
		out["is_error"] = true
	}

	return out
}

// TextResult builds a tool result with plain text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// ErrorResult builds a tool result marking a failure.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}

// ImageResult builds a tool result with image content.
func ImageResult(data []byte, mimeType string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.ImageContent{Data: data, MIMEType: mimeType}},
	}
}

// NewTool builds an mcp.Tool from its parts.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{Name: name, Description: description, InputSchema: inputSchema}
}

// Arguments unmarshals a tool call's raw arguments into a map.
func Arguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}

// SimpleSchema builds an object schema from a name→type map, e.g.
// {"a": "float64", "b": "string"}. Every property is required.
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	required := make([]string, 0, len(props))

	for name, goType := range props {
		properties[name] = schemaForType(goType)
		required = append(required, name)
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func schemaForType(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float32", "float64", "float", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "any", "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	default:
		if len(goType) > 2 && goType[:2] == "[]" {
			return &jsonschema.Schema{
				Type:  "array",
				Items: schemaForType(goType[2:]),
			}
		}

		return &jsonschema.Schema{Type: "string"}
	}
}
