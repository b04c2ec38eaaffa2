package dispatch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentwire/agentwire/internal/hook"
	"github.com/agentwire/agentwire/internal/permission"
	"github.com/agentwire/agentwire/internal/router"
	"github.com/agentwire/agentwire/internal/toolserver"
)

// Table routes agent-originated control requests to user callbacks: hooks,
// the permission callback, and in-process tool servers.
//
// Hook matching happens here, not in the agent: each event registers a
// single catch-all callback id, and on invocation the table picks the
// matching entries itself. By default the first matching entry wins;
// MatchAll runs every matching entry instead.
type Table struct {
	log *slog.Logger

	matchAll bool

	hooksMu     sync.RWMutex
	hooks       map[hook.Event][]*hook.Matcher
	callbackIDs map[string]hook.Event
	nextID      int

	canUseTool permission.Callback

	servers map[string]*toolserver.Server
}

// Config assembles a Table.
type Config struct {
	// Hooks are the registered matchers per event, in registration order.
	Hooks map[hook.Event][]*hook.Matcher

	// CanUseTool decides tool permissions. Nil means the handler is not
	// registered at all and the agent's own policy applies.
	CanUseTool permission.Callback

	// ToolServers are in-process tool servers keyed by name.
	ToolServers map[string]*toolserver.Server

	// MatchAll runs every matching hook entry instead of only the first.
	MatchAll bool
}

// NewTable creates a dispatch table.
func NewTable(log *slog.Logger, cfg Config) *Table {
	return &Table{
		log:         log.With("component", "dispatch"),
		matchAll:    cfg.MatchAll,
		hooks:       cfg.Hooks,
		callbackIDs: make(map[string]hook.Event, 8),
		canUseTool:  cfg.CanUseTool,
		servers:     cfg.ToolServers,
	}
}

// Register wires the table's handlers onto a router. The permission
// handler is only registered when a callback is configured, so absent a
// callback the agent's own policy applies untouched.
func (t *Table) Register(r *router.Router) {
	r.RegisterHandlerWithTimeout("hook_callback", t.HandleHookCallback, t.hookDeadline)
	r.RegisterHandler("mcp_message", t.HandleToolMessage)

	if t.canUseTool != nil {
		r.RegisterHandler("can_use_tool", t.HandleCanUseTool)
	}
}

// Active reports whether the table has anything for the agent to call
// back into. A session with an empty table skips the initialize hooks
// payload entirely.
func (t *Table) Active() bool {
	return len(t.hooks) > 0 || t.canUseTool != nil || len(t.servers) > 0
}

// ServerNames returns the names of the registered tool servers.
func (t *Table) ServerNames() []string {
	names := make([]string, 0, len(t.servers))
	for name := range t.servers {
		names = append(names, name)
	}

	return names
}

// HooksConfig builds the hooks section of the initialize payload.
//
// One catch-all wire matcher per event, carrying a generated callback id;
// pattern matching is done table-side on invocation. The wire timeout is
// the largest per-entry timeout so the agent never cuts off an entry the
// table would still wait for.
func (t *Table) HooksConfig() map[string]any {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()

	hooksConfig := make(map[string]any, len(t.hooks))

	for event, matchers := range t.hooks {
		if len(matchers) == 0 {
			continue
		}

		callbackID := fmt.Sprintf("hook_%d", t.nextID)
		t.nextID++
		t.callbackIDs[callbackID] = event

		matcherConfig := map[string]any{
			"matcher":         "",
			"hookCallbackIds": []string{callbackID},
		}

		if d := maxTimeout(matchers); d > 0 {
			matcherConfig["timeout"] = int(d.Seconds())
		}

		hooksConfig[string(event)] = []map[string]any{matcherConfig}
	}

	return hooksConfig
}

func maxTimeout(matchers []*hook.Matcher) time.Duration {
	var longest time.Duration

	for _, m := range matchers {
		if m.Timeout != nil && *m.Timeout > longest {
			longest = *m.Timeout
		}
	}

	return longest
}

// hookDeadline resolves the handling deadline for a hook_callback request
// from the matching entry's Timeout. Zero defers to the router default.
func (t *Table) hookDeadline(req *router.Request) time.Duration {
	callbackID, _ := req.Request["callback_id"].(string)
	input, _ := req.Request["input"].(map[string]any)
	toolName, _ := input["tool_name"].(string)

	t.hooksMu.RLock()
	defer t.hooksMu.RUnlock()

	event, ok := t.callbackIDs[callbackID]
	if !ok {
		return 0
	}

	for _, m := range t.hooks[event] {
		if m.Matches(toolName) && m.Timeout != nil {
			return *m.Timeout
		}
	}

	return 0
}
