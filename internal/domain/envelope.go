package domain

import "time"

// Error kinds carried in the invocation envelope. Handler-specific kinds
// (e.g. "TicketNotFound") are produced by the handlers themselves via
// HandlerError.
const (
	ErrKindUnknownTool = "UnknownTool"
	ErrKindValidation  = "ValidationError"
	ErrKindHandler     = "HandlerError"
	ErrKindTransport   = "TransportError"
)

// InvocationRequest is the wire form of a single tool call.
type InvocationRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// InvocationError is a structured error record inside an envelope.
type InvocationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Tool    string `json:"tool,omitempty"`
	Field   string `json:"field,omitempty"`
}

// InvocationResult is the uniform envelope returned by every tool call,
// successful or not. Exactly one of Result/Error is populated.
type InvocationResult struct {
	Success   bool             `json:"success"`
	Result    any              `json:"result,omitempty"`
	Error     *InvocationError `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Succeed wraps a handler payload in a success envelope.
func Succeed(payload any) InvocationResult {
	return InvocationResult{
		Success:   true,
		Result:    payload,
		Timestamp: time.Now().UTC(),
	}
}

// Fail produces an error envelope of the given kind.
func Fail(kind, message string) InvocationResult {
	return InvocationResult{
		Success:   false,
		Error:     &InvocationError{Type: kind, Message: message},
		Timestamp: time.Now().UTC(),
	}
}

// FailTool produces an error envelope attributed to a specific tool.
func FailTool(kind, message, tool string) InvocationResult {
	res := Fail(kind, message)
	res.Error.Tool = tool
	return res
}

// FailField produces a validation error envelope attributed to one field.
func FailField(message, field string) InvocationResult {
	res := Fail(ErrKindValidation, message)
	res.Error.Field = field
	return res
}

// HandlerError is a domain failure surfaced by a tool's own logic. The
// executor unwraps it so the envelope carries the handler's declared kind
// instead of the generic one.
type HandlerError struct {
	Kind    string
	Message string
}

func (e *HandlerError) Error() string {
	return e.Kind + ": " + e.Message
}

// NewHandlerError builds a HandlerError with the given kind.
func NewHandlerError(kind, message string) *HandlerError {
	return &HandlerError{Kind: kind, Message: message}
}
