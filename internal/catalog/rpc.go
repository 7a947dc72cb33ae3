package catalog

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Request is a JSON-RPC call. Params is [auth, args] for addon methods.
type Request struct {
	ID      json.RawMessage   `json:"id"`
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// Args returns the method arguments, the second positional param.
func (r *Request) Args() json.RawMessage {
	if len(r.Params) < 2 {
		return nil
	}
	return r.Params[1]
}

// Response is a JSON-RPC reply. Exactly one of Result and Error is set.
type Response struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Result builds a success response for id.
func Result(id json.RawMessage, result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &Response{ID: idOrNull(id), JSONRPC: Version, Result: data}, nil
}

// Failure builds an error response for id.
func Failure(id json.RawMessage, code int, message string) *Response {
	return &Response{ID: idOrNull(id), JSONRPC: Version, Error: &Error{Code: code, Message: message}}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
