// Package hook provides the types for intercepting agent lifecycle events.
package hook

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Event names a lifecycle event that can trigger registered hooks.
type Event string

const (
	// EventPreToolUse fires before the agent uses a tool.
	EventPreToolUse Event = "PreToolUse"
	// EventPostToolUse fires after the agent used a tool.
	EventPostToolUse Event = "PostToolUse"
	// EventUserPromptSubmit fires when a user prompt is submitted.
	EventUserPromptSubmit Event = "UserPromptSubmit"
	// EventStop fires when a turn stops.
	EventStop Event = "Stop"
	// EventPreCompact fires before the agent compacts its context.
	EventPreCompact Event = "PreCompact"
)

// Input is the interface for all hook input types.
type Input interface {
	EventName() Event
	SessionID() string
}

// Compile-time verification that all hook input types implement Input.
var (
	_ Input = (*PreToolUseInput)(nil)
	_ Input = (*PostToolUseInput)(nil)
	_ Input = (*UserPromptSubmitInput)(nil)
	_ Input = (*StopInput)(nil)
	_ Input = (*PreCompactInput)(nil)
)

// BaseInput carries the fields common to every hook input.
//
//nolint:tagliatelle // wire protocol uses snake_case
type BaseInput struct {
	Session        string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
}

// SessionID implements Input.
func (b *BaseInput) SessionID() string { return b.Session }

// PreToolUseInput is the input for PreToolUse hooks.
//
//nolint:tagliatelle // wire protocol uses snake_case
type PreToolUseInput struct {
	BaseInput
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
	ToolUseID string         `json:"tool_use_id"`
}

// EventName implements Input.
func (p *PreToolUseInput) EventName() Event { return EventPreToolUse }

// PostToolUseInput is the input for PostToolUse hooks.
//
//nolint:tagliatelle // wire protocol uses snake_case
type PostToolUseInput struct {
	BaseInput
	ToolName     string         `json:"tool_name"`
	ToolInput    map[string]any `json:"tool_input"`
	ToolUseID    string         `json:"tool_use_id"`
	ToolResponse any            `json:"tool_response"`
}

// EventName implements Input.
func (p *PostToolUseInput) EventName() Event { return EventPostToolUse }

// UserPromptSubmitInput is the input for UserPromptSubmit hooks.
type UserPromptSubmitInput struct {
	BaseInput
	Prompt string `json:"prompt"`
}

// EventName implements Input.
func (u *UserPromptSubmitInput) EventName() Event { return EventUserPromptSubmit }

// StopInput is the input for Stop hooks.
//
//nolint:tagliatelle // wire protocol uses snake_case
type StopInput struct {
	BaseInput
	StopHookActive bool `json:"stop_hook_active"`
}

// EventName implements Input.
func (s *StopInput) EventName() Event { return EventStop }

// PreCompactInput is the input for PreCompact hooks.
//
//nolint:tagliatelle // wire protocol uses snake_case
type PreCompactInput struct {
	BaseInput
	Trigger            string  `json:"trigger"` // "manual" or "auto"
	CustomInstructions *string `json:"custom_instructions,omitempty"`
}

// EventName implements Input.
func (p *PreCompactInput) EventName() Event { return EventPreCompact }

// Output is the result a hook handler returns.
//
// Deciding "block" wins over everything else for the event. Continue=false
// from any handler halts continuation. Nil pointer fields mean "no opinion"
// so later handlers in the same matcher can still contribute.
type Output struct {
	Continue       *bool          `json:"continue,omitempty"`
	SuppressOutput *bool          `json:"suppressOutput,omitempty"`
	StopReason     *string        `json:"stopReason,omitempty"`
	Decision       *string        `json:"decision,omitempty"` // "block"
	SystemMessage  *string        `json:"systemMessage,omitempty"`
	Reason         *string        `json:"reason,omitempty"`
	EventOutput    map[string]any `json:"hookSpecificOutput,omitempty"`
}

// Blocks reports whether the output carries an explicit block decision.
func (o *Output) Blocks() bool {
	return o != nil && o.Decision != nil && *o.Decision == "block"
}

// Callback is the function signature for hook handlers.
type Callback func(ctx context.Context, input Input) (*Output, error)

// Matcher pairs a tool-name pattern with the handlers to run when it applies.
//
// Pattern is a tool name like "Bash" or a pipe-separated combination like
// "Write|Edit". The empty pattern matches every tool/event. This is NOT a
// regular expression; pipe separates exact alternatives.
type Matcher struct {
	Pattern string
	Hooks   []Callback
	Timeout *time.Duration // per-invocation handler deadline (default 60s)
}

// Matches reports whether the matcher applies to the given tool name.
func (m *Matcher) Matches(toolName string) bool {
	if m.Pattern == "" {
		return true
	}

	return slices.Contains(strings.Split(m.Pattern, "|"), toolName)
}
