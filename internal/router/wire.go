package router

import (
	"context"
	"time"
)

// Request is a control message sent to or received from the agent.
//
// Wire format:
//
//	{
//	  "type": "control_request",
//	  "request_id": "01J...",
//	  "request": {
//	    "subtype": "initialize",
//	    "hooks": {...}
//	  }
//	}
type Request struct {
	// Type is always "control_request".
	Type string `json:"type"`

	// RequestID correlates the eventual response.
	RequestID string `json:"request_id"` //nolint:tagliatelle // wire protocol uses snake_case

	// Request holds the nested request data: subtype plus payload fields.
	Request map[string]any `json:"request"`
}

// Subtype extracts the subtype from the nested request data.
func (r *Request) Subtype() string {
	if s, ok := r.Request["subtype"].(string); ok {
		return s
	}

	return ""
}

// Response is the reply to a control request.
//
// Wire format for success:
//
//	{
//	  "type": "control_response",
//	  "response": {
//	    "subtype": "success",
//	    "request_id": "01J...",
//	    "response": {...}
//	  }
//	}
//
// Wire format for error:
//
//	{
//	  "type": "control_response",
//	  "response": {
//	    "subtype": "error",
//	    "request_id": "01J...",
//	    "error": "message"
//	  }
//	}
type Response struct {
	// Type is always "control_response".
	Type string `json:"type"`

	// Response holds the nested response data: subtype, request_id, and
	// either response (success) or error.
	Response map[string]any `json:"response"`
}

// IsError reports whether this is an error response.
func (r *Response) IsError() bool {
	if s, ok := r.Response["subtype"].(string); ok {
		return s == "error"
	}

	return false
}

// ErrorMessage extracts the error message from an error response.
func (r *Response) ErrorMessage() string {
	if e, ok := r.Response["error"].(string); ok {
		return e
	}

	return ""
}

// Payload extracts the payload from a success response.
func (r *Response) Payload() map[string]any {
	if p, ok := r.Response["response"].(map[string]any); ok {
		return p
	}

	return nil
}

// RequestID extracts the request_id from the nested response.
func (r *Response) RequestID() string {
	if id, ok := r.Response["request_id"].(string); ok {
		return id
	}

	return ""
}

// CancelRequest asks the peer to abandon an in-flight control request.
//
//nolint:tagliatelle // wire protocol uses snake_case
type CancelRequest struct {
	// Type is always "control_cancel_request".
	Type string `json:"type"`

	// RequestID names the request to cancel.
	RequestID string `json:"request_id"`
}

// HandlerFunc handles one inbound control request from the agent.
//
// Handlers are registered per subtype. The returned payload is wrapped in a
// success response; a returned error becomes an error response. The context
// is cancelled when the agent cancels the request or the handling deadline
// expires.
type HandlerFunc func(ctx context.Context, req *Request) (map[string]any, error)

// TimeoutFunc resolves the handling deadline for one request. Returning
// zero falls back to the router default.
type TimeoutFunc func(req *Request) time.Duration
