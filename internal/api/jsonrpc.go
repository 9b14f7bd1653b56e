// Package api exposes the payment core over a single JSON-RPC HTTP endpoint.
package api

import "encoding/json"

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// RPCResponse is the success envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result"`
	ID      interface{} `json:"id"`
}

// RPCError carries a stable code so the mobile client can branch without
// parsing message text.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e RPCError) Error() string { return e.Message }

// RPCErrorResponse is the failure envelope.
type RPCErrorResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Error   RPCError    `json:"error"`
	ID      interface{} `json:"id"`
}

// Domain error codes. The -316xx range is ours; -326xx are the standard
// JSON-RPC protocol codes.
const (
	CodeValidation         = -31601
	CodeMissingScope       = -31602
	CodeNotFound           = -31603
	CodeGatewayDenied      = -31604
	CodeGatewayUnavailable = -31605
	CodeConflict           = -31606

	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// NewRPCSuccessResponse wraps a result in the success envelope.
func NewRPCSuccessResponse(id interface{}, result interface{}) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// NewRPCErrorResponse wraps an error in the failure envelope.
func NewRPCErrorResponse(id interface{}, err RPCError) RPCErrorResponse {
	return RPCErrorResponse{JSONRPC: "2.0", ID: id, Error: err}
}
