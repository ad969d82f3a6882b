package server

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      json.RawMessage        `json:"id,omitempty"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return e.Message }

// methodHandler handles one protocol method. A returned *rpcError maps
// to an error response, anything else to a result response.
type methodHandler func(params map[string]interface{}) (interface{}, *rpcError)

// installMethods builds the fixed dispatch table. The table never grows
// after the server reaches Ready.
func (s *Server) installMethods() {
	s.methods = map[string]methodHandler{
		"initialize":                s.rpcInitialize,
		"notifications/initialized": s.rpcInitialized,
		"tools/list":                s.rpcToolsList,
		"tools/call":                s.rpcToolsCall,
		"ping":                      s.rpcPing,
	}
}

// dispatch routes one parsed request through the method table and
// produces exactly one response for it.
func (s *Server) dispatch(req *rpcRequest) *rpcResponse {
	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		return &rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error: &rpcError{
				Code:    codeInternalError,
				Message: fmt.Sprintf("Unknown method: %s", req.Method),
			},
		}
	}

	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func (s *Server) rpcInitialize(_ map[string]interface{}) (interface{}, *rpcError) {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	}, nil
}

func (s *Server) rpcInitialized(_ map[string]interface{}) (interface{}, *rpcError) {
	return map[string]interface{}{}, nil
}

func (s *Server) rpcToolsList(_ map[string]interface{}) (interface{}, *rpcError) {
	return map[string]interface{}{
		"tools": s.exec.Registry().List(),
	}, nil
}

func (s *Server) rpcToolsCall(params map[string]interface{}) (interface{}, *rpcError) {
	name, ok := params["name"].(string)
	if !ok || name == "" {
		// Request-format error, not a tool-execution error.
		return nil, &rpcError{
			Code:    codeInvalidParams,
			Message: "Missing required parameter: name",
		}
	}

	args, _ := params["arguments"].(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := s.callTool(name, args)
	if err != nil {
		return nil, &rpcError{
			Code:    codeInvalidParams,
			Message: err.Error(),
		}
	}

	if !result.Success {
		return nil, &rpcError{
			Code:    codeInternalError,
			Message: result.Error,
		}
	}

	text, merr := json.Marshal(result.Result)
	if merr != nil {
		return nil, &rpcError{
			Code:    codeInternalError,
			Message: fmt.Sprintf("failed to encode tool result: %v", merr),
		}
	}

	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
		"isError": false,
	}, nil
}

func (s *Server) rpcPing(_ map[string]interface{}) (interface{}, *rpcError) {
	return map[string]interface{}{"pong": true}, nil
}

// toolResultParams is the payload of the tool_result push notification.
type toolResultParams struct {
	ToolName  string                 `json:"toolName"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    interface{}            `json:"result"`
	Timestamp int64                  `json:"timestamp"`
}

func (s *Server) broadcastToolResult(name string, args map[string]interface{}, result interface{}) {
	s.broadcaster.Notify("notifications/tool_result", toolResultParams{
		ToolName:  name,
		Arguments: args,
		Result:    result,
		Timestamp: time.Now().UnixMilli(),
	})
}
