// Package permission provides the types for tool-use permission decisions.
package permission

import "context"

// Mode controls how the agent asks for permission before using tools.
type Mode string

const (
	// ModeDefault prompts for dangerous tools.
	ModeDefault Mode = "default"
	// ModeAcceptEdits auto-accepts file edits.
	ModeAcceptEdits Mode = "acceptEdits"
	// ModePlan runs in plan mode without executing tools.
	ModePlan Mode = "plan"
	// ModeBypassPermissions allows all tools without prompting.
	ModeBypassPermissions Mode = "bypassPermissions"
)

// UpdateType names a kind of permission rule update.
type UpdateType string

const (
	// UpdateTypeAddRules adds permission rules.
	UpdateTypeAddRules UpdateType = "addRules"
	// UpdateTypeReplaceRules replaces existing permission rules.
	UpdateTypeReplaceRules UpdateType = "replaceRules"
	// UpdateTypeRemoveRules removes permission rules.
	UpdateTypeRemoveRules UpdateType = "removeRules"
	// UpdateTypeSetMode switches the permission mode.
	UpdateTypeSetMode UpdateType = "setMode"
	// UpdateTypeAddDirectories grants access to directories.
	UpdateTypeAddDirectories UpdateType = "addDirectories"
	// UpdateTypeRemoveDirectories revokes access to directories.
	UpdateTypeRemoveDirectories UpdateType = "removeDirectories"
)

// UpdateDestination says where a permission update is persisted.
type UpdateDestination string

const (
	// DestUserSettings persists to user-level settings.
	DestUserSettings UpdateDestination = "userSettings"
	// DestProjectSettings persists to project-level settings.
	DestProjectSettings UpdateDestination = "projectSettings"
	// DestLocalSettings persists to local-level settings.
	DestLocalSettings UpdateDestination = "localSettings"
	// DestSession applies to the current session only.
	DestSession UpdateDestination = "session"
)

// Behavior is the action a permission rule prescribes.
type Behavior string

const (
	// BehaviorAllow permits the operation.
	BehaviorAllow Behavior = "allow"
	// BehaviorDeny rejects the operation.
	BehaviorDeny Behavior = "deny"
	// BehaviorAsk prompts the user.
	BehaviorAsk Behavior = "ask"
)

// Rule is a single permission rule.
type Rule struct {
	ToolName    string
	RuleContent *string
}

// Update is a permission rule change, either suggested by the agent or
// returned from an allow decision.
type Update struct {
	Type        UpdateType
	Rules       []*Rule
	Behavior    *Behavior
	Mode        *Mode
	Directories []string
	Destination *UpdateDestination
}

// ToWire converts the update to the map shape the agent process expects.
func (u *Update) ToWire() map[string]any {
	out := map[string]any{"type": string(u.Type)}

	if u.Destination != nil {
		out["destination"] = string(*u.Destination)
	}

	if len(u.Rules) > 0 {
		rules := make([]map[string]any, len(u.Rules))

		for i, r := range u.Rules {
			m := map[string]any{"toolName": r.ToolName}
			if r.RuleContent != nil {
				m["ruleContent"] = *r.RuleContent
			}

			rules[i] = m
		}

		out["rules"] = rules
	}

	if u.Behavior != nil {
		out["behavior"] = string(*u.Behavior)
	}

	if u.Mode != nil {
		out["mode"] = string(*u.Mode)
	}

	if len(u.Directories) > 0 {
		out["directories"] = u.Directories
	}

	return out
}

// Context carries ancillary data about the tool use being decided.
type Context struct {
	// Suggestions are rule updates the agent proposes alongside the request.
	Suggestions []*Update
}

// Result is the interface for permission decision results.
type Result interface {
	GetBehavior() string
}

// Compile-time verification that permission result types implement Result.
var (
	_ Result = (*ResultAllow)(nil)
	_ Result = (*ResultDeny)(nil)
)

// ResultAllow permits the tool use, optionally with rewritten input.
type ResultAllow struct {
	// UpdatedInput, when non-nil, replaces the tool input the agent proposed.
	UpdatedInput map[string]any
	// UpdatedPermissions are rule updates to apply alongside the allow.
	UpdatedPermissions []*Update
}

// GetBehavior implements Result.
func (*ResultAllow) GetBehavior() string { return "allow" }

// ResultDeny rejects the tool use.
type ResultDeny struct {
	// Message explains the denial to the agent.
	Message string
	// Interrupt, when true, aborts the whole turn instead of just this tool.
	Interrupt bool
}

// GetBehavior implements Result.
func (*ResultDeny) GetBehavior() string { return "deny" }

// Callback decides whether the agent may use a tool.
//
// Returning an error is treated as a denial with the error text as the
// message. The callback runs on the control dispatch goroutine for the
// request; ctx is cancelled if the agent cancels the request.
type Callback func(
	ctx context.Context,
	toolName string,
	input map[string]any,
	permCtx *Context,
) (Result, error)
