package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/internal/hook"
	"github.com/agentwire/agentwire/internal/router"
	"github.com/agentwire/agentwire/internal/toolserver"
)

func ptr[T any](v T) *T { return &v }

func discardLog() *slog.Logger { return slog.New(slog.DiscardHandler) }

// callbackIDFor returns the generated callback id for an event. HooksConfig
// must have been called first.
func callbackIDFor(t *testing.T, table *Table, event hook.Event) string {
	t.Helper()

	table.hooksMu.RLock()
	defer table.hooksMu.RUnlock()

	for id, ev := range table.callbackIDs {
		if ev == event {
			return id
		}
	}

	t.Fatalf("no callback id registered for event %s", event)

	return ""
}

func hookRequest(callbackID string, input map[string]any) *router.Request {
	return &router.Request{
		Type:      "control_request",
		RequestID: "req-test",
		Request: map[string]any{
			"subtype":     "hook_callback",
			"callback_id": callbackID,
			"input":       input,
		},
	}
}

func TestHooksConfig_OneMatcherPerEvent(t *testing.T) {
	timeout := 30 * time.Second

	table := NewTable(discardLog(), Config{
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Pattern: "Bash", Hooks: []hook.Callback{nopHook()}, Timeout: &timeout},
				{Pattern: "", Hooks: []hook.Callback{nopHook()}},
			},
			hook.EventStop: {
				{Hooks: []hook.Callback{nopHook()}},
			},
		},
	})

	cfg := table.HooksConfig()
	require.Len(t, cfg, 2)

	pre, ok := cfg["PreToolUse"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, pre, 1, "all entries collapse into one catch-all wire matcher")
	assert.Equal(t, "", pre[0]["matcher"])
	assert.Equal(t, 30, pre[0]["timeout"])

	ids, ok := pre[0]["hookCallbackIds"].([]string)
	require.True(t, ok)
	require.Len(t, ids, 1)
	assert.True(t, strings.HasPrefix(ids[0], "hook_"))

	stop, ok := cfg["Stop"].([]map[string]any)
	require.True(t, ok)
	assert.NotContains(t, stop[0], "timeout")
}

func TestHookCallback_FirstMatchWins(t *testing.T) {
	var firstRan, secondRan bool

	table := NewTable(discardLog(), Config{
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Pattern: "Bash", Hooks: []hook.Callback{recordHook(&firstRan, nil)}},
				{Pattern: "", Hooks: []hook.Callback{recordHook(&secondRan, nil)}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventPreToolUse)

	out, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{
		"session_id": "s1",
		"tool_name":  "Bash",
		"tool_input": map[string]any{"command": "ls"},
	}))
	require.NoError(t, err)

	assert.True(t, firstRan)
	assert.False(t, secondRan, "first matching entry wins; later entries are skipped")
	assert.Equal(t, true, out["continue"])
}

func TestHookCallback_MatchAllRunsEveryEntry(t *testing.T) {
	var firstRan, secondRan bool

	table := NewTable(discardLog(), Config{
		MatchAll: true,
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Pattern: "Bash", Hooks: []hook.Callback{recordHook(&firstRan, &hook.Output{
					SystemMessage: ptr("from first"),
				})}},
				{Pattern: "", Hooks: []hook.Callback{recordHook(&secondRan, &hook.Output{
					SystemMessage: ptr("from second"),
				})}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventPreToolUse)

	out, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{
		"tool_name": "Bash",
	}))
	require.NoError(t, err)

	assert.True(t, firstRan)
	assert.True(t, secondRan)
	assert.Equal(t, "from second", out["systemMessage"], "later fields override earlier ones")
}

func TestHookCallback_ContinueFlagsAnd(t *testing.T) {
	table := NewTable(discardLog(), Config{
		MatchAll: true,
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventStop: {
				{Hooks: []hook.Callback{
					fixedHook(&hook.Output{Continue: ptr(false)}),
					fixedHook(&hook.Output{Continue: ptr(true)}),
				}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventStop)

	out, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{}))
	require.NoError(t, err)

	assert.Equal(t, false, out["continue"], "a single false sticks regardless of later outputs")
}

func TestHookCallback_BlockShortCircuits(t *testing.T) {
	var afterBlockRan, secondEntryRan bool

	guard := func(_ context.Context, input hook.Input) (*hook.Output, error) {
		pre, ok := input.(*hook.PreToolUseInput)
		if !ok {
			return &hook.Output{}, nil
		}

		if cmd, _ := pre.ToolInput["command"].(string); strings.Contains(cmd, "rm -rf") {
			return &hook.Output{
				Decision: ptr("block"),
				Reason:   ptr("destructive command"),
			}, nil
		}

		return &hook.Output{}, nil
	}

	table := NewTable(discardLog(), Config{
		MatchAll: true,
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Pattern: "Bash", Hooks: []hook.Callback{guard, recordHook(&afterBlockRan, nil)}},
				{Pattern: "", Hooks: []hook.Callback{recordHook(&secondEntryRan, nil)}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventPreToolUse)

	out, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{
		"tool_name":  "Bash",
		"tool_input": map[string]any{"command": "rm -rf /"},
	}))
	require.NoError(t, err)

	assert.Equal(t, "block", out["decision"])
	assert.Equal(t, "destructive command", out["reason"])
	assert.False(t, afterBlockRan, "block short-circuits the rest of the entry")
	assert.False(t, secondEntryRan, "block short-circuits later entries even under MatchAll")
}

func TestHookCallback_PatternAlternatives(t *testing.T) {
	var ran bool

	table := NewTable(discardLog(), Config{
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Pattern: "Bash|Edit", Hooks: []hook.Callback{recordHook(&ran, nil)}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventPreToolUse)

	_, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{
		"tool_name": "Edit",
	}))
	require.NoError(t, err)
	assert.True(t, ran)

	ran = false

	out, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{
		"tool_name": "Write",
	}))
	require.NoError(t, err)
	assert.False(t, ran, "non-matching tool runs no entry")
	assert.Equal(t, true, out["continue"])
}

func TestHookCallback_UnknownCallbackID(t *testing.T) {
	table := NewTable(discardLog(), Config{})

	_, err := table.HandleHookCallback(context.Background(), hookRequest("hook_999", map[string]any{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown callback_id")
}

func TestHookCallback_TypedInput(t *testing.T) {
	var got *hook.PreToolUseInput

	table := NewTable(discardLog(), Config{
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Hooks: []hook.Callback{func(_ context.Context, input hook.Input) (*hook.Output, error) {
					got, _ = input.(*hook.PreToolUseInput)

					return &hook.Output{}, nil
				}}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventPreToolUse)

	_, err := table.HandleHookCallback(context.Background(), hookRequest(id, map[string]any{
		"session_id":      "s1",
		"transcript_path": "/tmp/t.jsonl",
		"cwd":             "/work",
		"tool_name":       "Bash",
		"tool_input":      map[string]any{"command": "ls"},
		"tool_use_id":     "tu-1",
	}))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID())
	assert.Equal(t, "/work", got.Cwd)
	assert.Equal(t, "Bash", got.ToolName)
	assert.Equal(t, "tu-1", got.ToolUseID)
}

func TestHookDeadline_ResolvesMatchingEntry(t *testing.T) {
	short := 5 * time.Second

	table := NewTable(discardLog(), Config{
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventPreToolUse: {
				{Pattern: "Bash", Hooks: []hook.Callback{nopHook()}, Timeout: &short},
				{Pattern: "", Hooks: []hook.Callback{nopHook()}},
			},
		},
	})
	table.HooksConfig()

	id := callbackIDFor(t, table, hook.EventPreToolUse)

	req := hookRequest(id, map[string]any{"tool_name": "Bash"})
	assert.Equal(t, short, table.hookDeadline(req))

	// A tool matching only the untimed entry falls back to the router
	// default.
	req = hookRequest(id, map[string]any{"tool_name": "Write"})
	assert.Equal(t, time.Duration(0), table.hookDeadline(req))

	req = hookRequest("hook_999", map[string]any{})
	assert.Equal(t, time.Duration(0), table.hookDeadline(req))
}

func TestActive(t *testing.T) {
	assert.False(t, NewTable(discardLog(), Config{}).Active())

	assert.True(t, NewTable(discardLog(), Config{
		Hooks: map[hook.Event][]*hook.Matcher{
			hook.EventStop: {{Hooks: []hook.Callback{nopHook()}}},
		},
	}).Active())

	assert.True(t, NewTable(discardLog(), Config{
		CanUseTool: allowAll(),
	}).Active())

	assert.True(t, NewTable(discardLog(), Config{
		ToolServers: map[string]*toolserver.Server{
			"calc": toolserver.NewServer("calc", "1.0.0"),
		},
	}).Active())
}

func nopHook() hook.Callback {
	return func(_ context.Context, _ hook.Input) (*hook.Output, error) {
		return &hook.Output{}, nil
	}
}

func recordHook(ran *bool, out *hook.Output) hook.Callback {
	return func(_ context.Context, _ hook.Input) (*hook.Output, error) {
		*ran = true

		if out == nil {
			out = &hook.Output{}
		}

		return out, nil
	}
}

func fixedHook(out *hook.Output) hook.Callback {
	return func(_ context.Context, _ hook.Input) (*hook.Output, error) {
		return out, nil
	}
}
