package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agentwire/agentwire/internal/config"
)

// Command is a fully built agent invocation: argv tail and environment.
type Command struct {
	// Args are the command line arguments, excluding the binary path.
	Args []string

	// Env is the complete process environment.
	Env []string
}

// BuildArgs constructs the agent's command line arguments.
//
// When streaming is true the prompt is omitted and --input-format
// stream-json is used; user turns arrive via stdin. Otherwise the prompt is
// passed with --print for a one-shot run.
func BuildArgs(prompt string, opts *config.Options, streaming bool) []string {
	args := []string{
		"--output-format", "stream-json",
		"--verbose",
	}

	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode",
			string(config.NormalizePermissionMode(opts.PermissionMode)))
	}

	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	if opts.FallbackModel != "" {
		args = append(args, "--fallback-model", opts.FallbackModel)
	}

	// The flag is always present; an empty value selects the default prompt.
	args = append(args, "--system-prompt", opts.SystemPrompt)

	if opts.IncludePartialMessages {
		args = append(args, "--include-partial-messages")
	}

	if opts.MaxBudgetUSD != nil {
		args = append(args, "--max-budget-usd", fmt.Sprintf("%g", *opts.MaxBudgetUSD))
	}

	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(opts.AllowedTools, ","))
	}

	if len(opts.DisallowedTools) > 0 {
		args = append(args, "--disallowed-tools", strings.Join(opts.DisallowedTools, ","))
	}

	// Permission prompts route over the control protocol when a callback
	// is configured.
	if opts.CanUseTool != nil {
		args = append(args, "--permission-prompt-tool", "stdio")
	}

	if len(opts.ToolServers) > 0 {
		args = append(args, "--mcp-config", toolServerConfig(opts))
	}

	if opts.ContinueConversation {
		args = append(args, "--continue")
	}

	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
	}

	if opts.ForkSession {
		args = append(args, "--fork-session")
	}

	for key, value := range opts.ExtraArgs {
		if value == nil {
			args = append(args, "--"+key)
		} else {
			args = append(args, "--"+key, *value)
		}
	}

	if streaming {
		args = append(args, "--input-format", "stream-json")
	} else {
		args = append(args, "--print", "--", prompt)
	}

	return args
}

// toolServerConfig serializes the in-process tool servers so the agent
// knows to route their traffic back over the control protocol.
func toolServerConfig(opts *config.Options) string {
	servers := make(map[string]any, len(opts.ToolServers))
	for name := range opts.ToolServers {
		servers[name] = map[string]string{"type": "sdk", "name": name}
	}

	data, err := json.Marshal(map[string]any{"mcpServers": servers})
	if err != nil {
		// A map of string literals cannot fail to marshal.
		return "{}"
	}

	return string(data)
}

// BuildEnvironment constructs the agent process environment: the current
// environment, module identification, then caller overrides.
func BuildEnvironment(opts *config.Options) []string {
	env := os.Environ()

	env = append(env, "AGENTWIRE_VERSION=0.1.0")
	env = append(env, "CLAUDE_CODE_ENTRYPOINT=sdk-go")

	for key, value := range opts.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
