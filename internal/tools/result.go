package tools

import (
	"encoding/json"

	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

// Result is the envelope every tool returns, serialized as the text content
// of the MCP response.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"` // internal error (not serialized)
}

func NewResult(data any, message string) *Result {
	return &Result{Success: true, Data: data, Message: message}
}

// ErrorResult reports a failure with an explicit code.
func ErrorResult(code, message string) *Result {
	return &Result{Error: message, Code: code}
}

// FromError reports err, deriving the code from the error chain.
func FromError(err error) *Result {
	return &Result{Error: err.Error(), Code: protocol.CodeOf(err), Err: err}
}

// JSON renders the envelope. Data that cannot be encoded turns the result
// into an INTERNAL failure.
func (r *Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(ErrorResult(protocol.ErrInternal, "encode result: "+err.Error()))
	}
	return string(data)
}
