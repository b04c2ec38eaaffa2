package dispatch

import (
	"context"
	"fmt"

	"github.com/agentwire/agentwire/internal/permission"
	"github.com/agentwire/agentwire/internal/router"
)

// HandleCanUseTool dispatches a can_use_tool control request to the
// configured permission callback. A returned error is surfaced as an error
// response, which the agent treats as a denial.
func (t *Table) HandleCanUseTool(ctx context.Context, req *router.Request) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if t.canUseTool == nil {
		// Unreachable when registration is gated on the callback, but a
		// defaulting answer beats a broken control channel.
		return map[string]any{"behavior": "allow"}, nil
	}

	toolName, _ := req.Request["tool_name"].(string)
	input, _ := req.Request["input"].(map[string]any)

	permCtx := &permission.Context{
		Suggestions: parseSuggestions(req.Request["suggestions"]),
	}

	t.log.Debug("Dispatching permission decision", "tool_name", toolName)

	decision, err := t.canUseTool(ctx, toolName, input, permCtx)
	if err != nil {
		return nil, err
	}

	switch d := decision.(type) {
	case *permission.ResultAllow:
		result := map[string]any{"behavior": "allow"}

		if d.UpdatedInput != nil {
			result["updatedInput"] = d.UpdatedInput
		}

		if len(d.UpdatedPermissions) > 0 {
			updates := make([]map[string]any, len(d.UpdatedPermissions))
			for i, u := range d.UpdatedPermissions {
				updates[i] = u.ToWire()
			}

			result["updatedPermissions"] = updates
		}

		return result, nil

	case *permission.ResultDeny:
		result := map[string]any{
			"behavior": "deny",
			"message":  d.Message,
		}

		if d.Interrupt {
			result["interrupt"] = true
		}

		return result, nil

	default:
		return nil, fmt.Errorf(
			"permission callback must return *ResultAllow or *ResultDeny, got %T", decision)
	}
}

// parseSuggestions decodes the agent's suggested permission updates.
func parseSuggestions(raw any) []*permission.Update {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	suggestions := make([]*permission.Update, 0, len(items))

	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}

		update := &permission.Update{}

		if v, ok := m["type"].(string); ok {
			update.Type = permission.UpdateType(v)
		}

		if v, ok := m["behavior"].(string); ok {
			b := permission.Behavior(v)
			update.Behavior = &b
		}

		if v, ok := m["mode"].(string); ok {
			pm := permission.Mode(v)
			update.Mode = &pm
		}

		if v, ok := m["destination"].(string); ok {
			dest := permission.UpdateDestination(v)
			update.Destination = &dest
		}

		if dirs, ok := m["directories"].([]any); ok {
			for _, d := range dirs {
				if s, ok := d.(string); ok {
					update.Directories = append(update.Directories, s)
				}
			}
		}

		if rules, ok := m["rules"].([]any); ok {
			for _, r := range rules {
				rm, ok := r.(map[string]any)
				if !ok {
					continue
				}

				rule := &permission.Rule{}
				rule.ToolName, _ = rm["toolName"].(string)

				if rc, ok := rm["ruleContent"].(string); ok {
					rule.RuleContent = &rc
				}

				update.Rules = append(update.Rules, rule)
			}
		}

		suggestions = append(suggestions, update)
	}

	return suggestions
}
