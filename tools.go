package agentwire

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentwire/agentwire/internal/toolserver"
)

// Re-export MCP SDK types for the public API.
type (
	// CallToolResult is the response to a tool call.
	// Use TextResult, ErrorResult, or ImageResult helpers to create results.
	CallToolResult = mcp.CallToolResult

	// CallToolRequest is the request passed to tool handlers.
	CallToolRequest = mcp.CallToolRequest

	// ToolHandler is the function signature for tool handlers.
	//
	// Use Arguments to extract the input as map[string]any from the request.
	ToolHandler = mcp.ToolHandler

	// ToolAnnotations describes optional hints about tool behavior, such
	// as ReadOnlyHint, DestructiveHint, IdempotentHint, and OpenWorldHint.
	ToolAnnotations = mcp.ToolAnnotations

	// Schema is a JSON Schema object for tool input validation.
	Schema = jsonschema.Schema

	// ToolServer hosts in-process tools the agent can call. Build one
	// with NewToolServer and pass it to WithToolServer, or use WithTools
	// for the common single-server case.
	ToolServer = toolserver.Server
)

// NewToolServer creates a named, versioned in-process tool server.
func NewToolServer(name, version string) *ToolServer {
	return toolserver.NewServer(name, version)
}

// Tool is a single in-process tool: a definition plus its handler.
type Tool struct {
	definition *mcp.Tool
	handler    mcp.ToolHandler
}

// ToolOption configures a Tool during construction.
type ToolOption func(*Tool)

// WithAnnotations sets tool annotations (hints about tool behavior).
func WithAnnotations(annotations *ToolAnnotations) ToolOption {
	return func(t *Tool) {
		t.definition.Annotations = annotations
	}
}

// NewTool creates a Tool from a name, description, input schema, and
// handler.
//
// Use SimpleSchema for basic schemas or build a full Schema struct for
// more control:
//
//	add := agentwire.NewTool("add", "Add two numbers",
//	    agentwire.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
//	    func(ctx context.Context, req *agentwire.CallToolRequest) (*agentwire.CallToolResult, error) {
//	        args, _ := agentwire.Arguments(req)
//	        a, b := args["a"].(float64), args["b"].(float64)
//	        return agentwire.TextResult(fmt.Sprintf("%v", a+b)), nil
//	    },
//	)
func NewTool(
	name, description string,
	inputSchema *jsonschema.Schema,
	handler ToolHandler,
	opts ...ToolOption,
) *Tool {
	t := &Tool{
		definition: toolserver.NewTool(name, description, inputSchema),
		handler:    handler,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return t.definition.Name
}

// SimpleSchema creates a jsonschema.Schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}
//
// Type mappings:
//   - "string"           → {"type": "string"}
//   - "int", "int64"     → {"type": "integer"}
//   - "float64", "float" → {"type": "number"}
//   - "bool"             → {"type": "boolean"}
//   - "[]string"         → {"type": "array", "items": {"type": "string"}}
//   - "any", "object"    → {"type": "object"}
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	return toolserver.SimpleSchema(props)
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *CallToolResult {
	return toolserver.TextResult(text)
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *CallToolResult {
	return toolserver.ErrorResult(message)
}

// ImageResult creates a CallToolResult with image content.
func ImageResult(data []byte, mimeType string) *CallToolResult {
	return toolserver.ImageResult(data, mimeType)
}

// Arguments unmarshals CallToolRequest arguments into a map.
func Arguments(req *CallToolRequest) (map[string]any, error) {
	return toolserver.Arguments(req)
}
