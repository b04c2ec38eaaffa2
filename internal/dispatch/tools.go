package dispatch

import (
	"context"
	"fmt"

	"github.com/agentwire/agentwire/internal/router"
	"github.com/agentwire/agentwire/internal/toolserver"
)

// HandleToolMessage dispatches an mcp_message control request to the named
// in-process tool server, routing on the JSON-RPC method: initialize,
// notifications/initialized, tools/list, tools/call.
//
// Protocol faults come back as JSON-RPC error objects inside a success
// response; handler faults inside tools/call come back as is_error tool
// results. Neither escapes to the router.
func (t *Table) HandleToolMessage(ctx context.Context, req *router.Request) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	serverName, _ := req.Request["server_name"].(string)
	msg, _ := req.Request["message"].(map[string]any)

	if msg == nil {
		return nil, fmt.Errorf("missing message field in mcp_message request")
	}

	method, _ := msg["method"].(string)
	params, _ := msg["params"].(map[string]any)
	msgID := rpcID(msg["id"])

	t.log.Debug("Dispatching tool server message", "server", serverName, "method", method)

	server, exists := t.servers[serverName]
	if !exists {
		return rpcError(msgID, -32600, "Tool server not found: "+serverName), nil
	}

	switch method {
	case "initialize":
		return rpcResult(msgID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    server.Capabilities(),
			"serverInfo":      server.Info(),
		}), nil

	case "notifications/initialized":
		return rpcResult(msgID, map[string]any{}), nil

	case "tools/list":
		return rpcResult(msgID, map[string]any{"tools": server.ListTools()}), nil

	case "tools/call":
		return t.callTool(ctx, msgID, params, server)

	default:
		return rpcError(msgID, -32601, "Method not found: "+method), nil
	}
}

func (t *Table) callTool(
	ctx context.Context,
	msgID any,
	params map[string]any,
	server *toolserver.Server,
) (map[string]any, error) {
	if params == nil {
		return rpcError(msgID, -32602, "Missing params for tools/call"), nil
	}

	toolName, _ := params["name"].(string)
	arguments, _ := params["arguments"].(map[string]any)

	if toolName == "" {
		return rpcError(msgID, -32602, "Missing tool name in params"), nil
	}

	result, err := server.CallTool(ctx, toolName, arguments)
	if err != nil {
		return rpcError(msgID, -32603, err.Error()), nil
	}

	return rpcResult(msgID, result), nil
}

// rpcID normalizes the JSON-RPC id, which may arrive as a number or string.
func rpcID(raw any) any {
	if id, ok := raw.(float64); ok {
		return int(id)
	}

	return raw
}

func rpcResult(msgID any, result map[string]any) map[string]any {
	return map[string]any{
		"mcp_response": map[string]any{
			"jsonrpc": "2.0",
			"id":      msgID,
			"result":  result,
		},
	}
}

func rpcError(msgID any, code int, message string) map[string]any {
	return map[string]any{
		"mcp_response": map[string]any{
			"jsonrpc": "2.0",
			"id":      msgID,
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
	}
}
