package dispatch

import (
	"context"
	"fmt"

	"github.com/agentwire/agentwire/internal/hook"
	"github.com/agentwire/agentwire/internal/router"
)

// HandleHookCallback dispatches a hook_callback control request.
//
// The matching entry (or entries, under MatchAll) runs its handlers in
// order. An explicit block decision short-circuits and wins; continue
// flags AND together; for everything else a later handler's output
// overrides an earlier one's, field by field.
func (t *Table) HandleHookCallback(ctx context.Context, req *router.Request) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	callbackID, _ := req.Request["callback_id"].(string)
	inputData, _ := req.Request["input"].(map[string]any)

	t.hooksMu.RLock()
	event, known := t.callbackIDs[callbackID]
	matchers := t.hooks[event]
	t.hooksMu.RUnlock()

	if !known {
		return nil, fmt.Errorf("unknown callback_id: %s", callbackID)
	}

	input, err := parseHookInput(event, inputData)
	if err != nil {
		return nil, fmt.Errorf("parse hook input: %w", err)
	}

	toolName := hookToolName(input)

	t.log.Debug("Dispatching hook",
		"event", string(event), "tool_name", toolName, "callback_id", callbackID)

	merged := &hook.Output{}
	matched := false

	for _, m := range matchers {
		if !m.Matches(toolName) {
			continue
		}

		matched = true

		blocked, err := t.runEntry(ctx, m, input, merged)
		if err != nil {
			return nil, err
		}

		if blocked || !t.matchAll {
			break
		}
	}

	if !matched {
		t.log.Debug("No hook entry matched", "event", string(event), "tool_name", toolName)
	}

	return hookOutputToWire(merged), nil
}

// runEntry runs one matcher's handlers in order, merging their outputs
// into acc. Returns true when a handler blocked, which short-circuits the
// remaining handlers and entries.
func (t *Table) runEntry(ctx context.Context, m *hook.Matcher, input hook.Input, acc *hook.Output) (bool, error) {
	for _, fn := range m.Hooks {
		out, err := fn(ctx, input)
		if err != nil {
			return false, fmt.Errorf("hook callback error: %w", err)
		}

		mergeHookOutput(acc, out)

		if out.Blocks() {
			return true, nil
		}
	}

	return false, nil
}

// mergeHookOutput folds next into acc: continue flags AND, other fields
// last-writer-wins.
func mergeHookOutput(acc, next *hook.Output) {
	if next == nil {
		return
	}

	if next.Continue != nil {
		if acc.Continue == nil || (*acc.Continue && !*next.Continue) {
			acc.Continue = next.Continue
		}
	}

	if next.SuppressOutput != nil {
		acc.SuppressOutput = next.SuppressOutput
	}

	if next.StopReason != nil {
		acc.StopReason = next.StopReason
	}

	if next.Decision != nil {
		acc.Decision = next.Decision
	}

	if next.SystemMessage != nil {
		acc.SystemMessage = next.SystemMessage
	}

	if next.Reason != nil {
		acc.Reason = next.Reason
	}

	if next.EventOutput != nil {
		acc.EventOutput = next.EventOutput
	}
}

// hookOutputToWire shapes the merged output for the agent. Continue
// defaults to true.
func hookOutputToWire(out *hook.Output) map[string]any {
	result := make(map[string]any, 8)

	if out.Continue != nil {
		result["continue"] = *out.Continue
	} else {
		result["continue"] = true
	}

	if out.SuppressOutput != nil {
		result["suppressOutput"] = *out.SuppressOutput
	}

	if out.StopReason != nil {
		result["stopReason"] = *out.StopReason
	}

	if out.Decision != nil {
		result["decision"] = *out.Decision
	}

	if out.SystemMessage != nil {
		result["systemMessage"] = *out.SystemMessage
	}

	if out.Reason != nil {
		result["reason"] = *out.Reason
	}

	if out.EventOutput != nil {
		result["hookSpecificOutput"] = out.EventOutput
	}

	return result
}

// hookToolName extracts the tool name for pattern matching; events without
// tools match only catch-all entries.
func hookToolName(input hook.Input) string {
	switch in := input.(type) {
	case *hook.PreToolUseInput:
		return in.ToolName
	case *hook.PostToolUseInput:
		return in.ToolName
	default:
		return ""
	}
}

// parseHookInput converts the wire input map to the event's typed input.
func parseHookInput(event hook.Event, data map[string]any) (hook.Input, error) {
	if data == nil {
		return nil, fmt.Errorf("input data is nil")
	}

	base := hook.BaseInput{}
	base.Session, _ = data["session_id"].(string)
	base.TranscriptPath, _ = data["transcript_path"].(string)
	base.Cwd, _ = data["cwd"].(string)

	switch event {
	case hook.EventPreToolUse:
		in := &hook.PreToolUseInput{BaseInput: base}
		in.ToolName, _ = data["tool_name"].(string)
		in.ToolInput, _ = data["tool_input"].(map[string]any)
		in.ToolUseID, _ = data["tool_use_id"].(string)

		return in, nil

	case hook.EventPostToolUse:
		in := &hook.PostToolUseInput{BaseInput: base}
		in.ToolName, _ = data["tool_name"].(string)
		in.ToolInput, _ = data["tool_input"].(map[string]any)
		in.ToolUseID, _ = data["tool_use_id"].(string)
		in.ToolResponse = data["tool_response"]

		return in, nil

	case hook.EventUserPromptSubmit:
		in := &hook.UserPromptSubmitInput{BaseInput: base}
		in.Prompt, _ = data["prompt"].(string)

		return in, nil

	case hook.EventStop:
		in := &hook.StopInput{BaseInput: base}
		in.StopHookActive, _ = data["stop_hook_active"].(bool)

		return in, nil

	case hook.EventPreCompact:
		in := &hook.PreCompactInput{BaseInput: base}
		in.Trigger, _ = data["trigger"].(string)

		if ci, ok := data["custom_instructions"].(string); ok && ci != "" {
			in.CustomInstructions = &ci
		}

		return in, nil

	default:
		// Unknown events still dispatch so catch-all entries see them.
		return &hook.StopInput{BaseInput: base}, nil
	}
}
