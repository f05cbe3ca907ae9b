// Package rpc implements the daemon's JSON-RPC 2.0 method table (§4.7):
// a single Handle entry point mapping method names onto session/pool
// operations, serializing typed results back into the wire envelope.
package rpc

import (
	"encoding/json"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// Request is one line of the client->daemon stream.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one line of the daemon->client stream.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RpcError       `json:"error,omitempty"`
}

// RpcError is the JSON-RPC error object (§4.7 error codes).
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is an unsolicited daemon->client push (collector events,
// broadcast via the IPC server's send_to/broadcast).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func result(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}

func errorResponse(id uint64, code int, msg string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &RpcError{Code: code, Message: msg}}
}

func okResponse(id uint64, v any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result(v)}
}

// ParseErrorResponse builds the response a transport (IPC, HTTP) sends
// back when it cannot even decode a line into a Request (§4.7 parse
// error, code -32700). The id is always 0: a malformed line carries no
// usable id to echo.
func ParseErrorResponse(err error) Response {
	return errorResponse(0, chromeerr.CodeParseError, "parse error: "+err.Error())
}
