package config

import "github.com/agentwire/agentwire/internal/permission"

// NormalizePermissionMode maps legacy permission mode names to the values
// current agent binaries accept.
//
// Legacy mappings:
//   - "acceptAll" -> "bypassPermissions"
//   - "prompt" -> "default"
func NormalizePermissionMode(mode permission.Mode) permission.Mode {
	switch mode {
	case "acceptAll":
		return permission.ModeBypassPermissions
	case "prompt":
		return permission.ModeDefault
	default:
		return mode
	}
}
