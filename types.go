package agentwire

import (
	"iter"

	"github.com/agentwire/agentwire/internal/config"
	"github.com/agentwire/agentwire/internal/hook"
	"github.com/agentwire/agentwire/internal/message"
	"github.com/agentwire/agentwire/internal/permission"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures sessions and one-shot queries. Most callers use the
// functional options in options.go instead of filling this in directly.
type Options = config.Options

// ===== Messages =====

// Message is any message in the conversation.
type Message = message.Message

// UserMessage is a message echoed back from the user's side of the
// conversation, including tool results.
type UserMessage = message.UserMessage

// UserContent is the user message body: plain text or content blocks.
type UserContent = message.UserContent

// TextContent creates UserContent from a string.
var TextContent = message.TextContent

// BlockContent creates UserContent from content blocks.
var BlockContent = message.BlockContent

// AssistantMessage is a message from the agent.
type AssistantMessage = message.AssistantMessage

// AssistantError classifies upstream API failures reported on an
// assistant message.
type AssistantError = message.AssistantError

const (
	// AssistantErrorAuthFailed indicates authentication failure.
	AssistantErrorAuthFailed = message.AssistantErrorAuthFailed
	// AssistantErrorBilling indicates a billing error.
	AssistantErrorBilling = message.AssistantErrorBilling
	// AssistantErrorRateLimit indicates rate limiting.
	AssistantErrorRateLimit = message.AssistantErrorRateLimit
	// AssistantErrorInvalidReq indicates an invalid request.
	AssistantErrorInvalidReq = message.AssistantErrorInvalidReq
	// AssistantErrorServer indicates an upstream server error.
	AssistantErrorServer = message.AssistantErrorServer
	// AssistantErrorUnknown indicates an unclassified error.
	AssistantErrorUnknown = message.AssistantErrorUnknown
)

// SystemMessage is an informational message from the agent process.
type SystemMessage = message.SystemMessage

// ResultMessage is the final message of a turn, carrying cost and usage.
type ResultMessage = message.ResultMessage

// StreamEvent is an incremental API event, forwarded when
// WithIncludePartialMessages is set.
type StreamEvent = message.StreamEvent

// Usage contains token usage information.
type Usage = message.Usage

// ===== Content Blocks =====

// ContentBlock is one block of content within a message.
type ContentBlock = message.ContentBlock

// TextBlock contains plain text content.
type TextBlock = message.TextBlock

// ThinkingBlock contains the agent's thinking output.
type ThinkingBlock = message.ThinkingBlock

// ToolUseBlock records the agent invoking a tool.
type ToolUseBlock = message.ToolUseBlock

// ToolResultBlock contains the result of a tool execution.
type ToolResultBlock = message.ToolResultBlock

// ===== Streaming Input =====

// Turn is one user turn sent to the agent in streaming mode.
type Turn = message.Turn

// TurnStream is an iterator yielding streaming input turns.
type TurnStream = iter.Seq[*Turn]

// ===== Hooks =====

// HookEvent identifies the lifecycle event a hook observes.
type HookEvent = hook.Event

const (
	// HookEventPreToolUse fires before a tool runs.
	HookEventPreToolUse = hook.EventPreToolUse
	// HookEventPostToolUse fires after a tool runs.
	HookEventPostToolUse = hook.EventPostToolUse
	// HookEventUserPromptSubmit fires when a user prompt is submitted.
	HookEventUserPromptSubmit = hook.EventUserPromptSubmit
	// HookEventStop fires when the agent finishes responding.
	HookEventStop = hook.EventStop
	// HookEventPreCompact fires before conversation compaction.
	HookEventPreCompact = hook.EventPreCompact
)

// HookInput is the interface for all hook input types.
type HookInput = hook.Input

// BaseHookInput carries the fields common to every hook input.
type BaseHookInput = hook.BaseInput

// PreToolUseHookInput is the input for PreToolUse hooks.
type PreToolUseHookInput = hook.PreToolUseInput

// PostToolUseHookInput is the input for PostToolUse hooks.
type PostToolUseHookInput = hook.PostToolUseInput

// UserPromptSubmitHookInput is the input for UserPromptSubmit hooks.
type UserPromptSubmitHookInput = hook.UserPromptSubmitInput

// StopHookInput is the input for Stop hooks.
type StopHookInput = hook.StopInput

// PreCompactHookInput is the input for PreCompact hooks.
type PreCompactHookInput = hook.PreCompactInput

// HookOutput is a hook's decision: whether to continue, block, or annotate.
type HookOutput = hook.Output

// HookCallback is the function signature for hook callbacks.
type HookCallback = hook.Callback

// HookMatcher binds hook callbacks to the tools they apply to.
type HookMatcher = hook.Matcher

// ===== Permissions =====

// PermissionMode selects how tool permissions are handled.
type PermissionMode = permission.Mode

const (
	// PermissionModeDefault uses standard permission prompts.
	PermissionModeDefault = permission.ModeDefault
	// PermissionModeAcceptEdits automatically accepts file edits.
	PermissionModeAcceptEdits = permission.ModeAcceptEdits
	// PermissionModePlan enables plan mode.
	PermissionModePlan = permission.ModePlan
	// PermissionModeBypassPermissions bypasses all permission checks.
	PermissionModeBypassPermissions = permission.ModeBypassPermissions
)

// PermissionUpdate is a permission rule change suggested by the agent or
// returned from a callback.
type PermissionUpdate = permission.Update

// PermissionRule is a single tool permission rule.
type PermissionRule = permission.Rule

// PermissionContext carries the agent's suggestions into a permission
// callback.
type PermissionContext = permission.Context

// PermissionResult is the interface for permission decisions.
type PermissionResult = permission.Result

// PermissionResultAllow allows the tool call, optionally with modified
// input.
type PermissionResultAllow = permission.ResultAllow

// PermissionResultDeny denies the tool call with a message.
type PermissionResultDeny = permission.ResultDeny

// PermissionCallback decides each tool call when configured via
// WithCanUseTool.
type PermissionCallback = permission.Callback

// ===== Transport =====

// Transport is the byte-stream boundary to the agent process. Implement
// it to substitute the subprocess with a test double or a remote
// connection; inject via WithTransport.
type Transport = config.Transport
