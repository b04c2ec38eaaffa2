package agentwire

import (
	"log/slog"
	"time"

	"github.com/agentwire/agentwire/internal/toolserver"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSystemPrompt sets the system prompt for the agent.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// WithModel selects the model, e.g. "claude-sonnet-4-5".
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithFallbackModel specifies a model to use if the primary model fails.
func WithFallbackModel(model string) Option {
	return func(o *Options) {
		o.FallbackModel = model
	}
}

// WithPermissionMode controls how permissions are handled.
// Valid values: "default", "acceptEdits", "plan", "bypassPermissions".
func WithPermissionMode(mode PermissionMode) Option {
	return func(o *Options) {
		o.PermissionMode = mode
	}
}

// WithMaxTurns limits the maximum number of conversation turns.
func WithMaxTurns(maxTurns int) Option {
	return func(o *Options) {
		o.MaxTurns = maxTurns
	}
}

// WithCwd sets the working directory for the agent process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithBinPath sets the explicit path to the agent binary.
// If not set, the binary is discovered on PATH and common install
// locations.
func WithBinPath(path string) Option {
	return func(o *Options) {
		o.BinPath = path
	}
}

// WithEnv provides additional environment variables for the agent process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithUser sets a user identifier for tracking purposes.
func WithUser(user string) Option {
	return func(o *Options) {
		o.User = user
	}
}

// ===== Hooks =====

// WithHooks registers lifecycle hooks, keyed by event. Within an event,
// the first matcher whose pattern matches the tool wins; a blocking hook
// output short-circuits the rest of that matcher's callbacks.
func WithHooks(hooks map[HookEvent][]*HookMatcher) Option {
	return func(o *Options) {
		o.Hooks = hooks
	}
}

// ===== Permissions =====

// WithCanUseTool sets a callback consulted before each tool use.
func WithCanUseTool(callback PermissionCallback) Option {
	return func(o *Options) {
		o.CanUseTool = callback
	}
}

// WithAllowedTools sets pre-approved tools that skip permission prompts.
func WithAllowedTools(tools ...string) Option {
	return func(o *Options) {
		o.AllowedTools = tools
	}
}

// WithDisallowedTools sets tools that are explicitly blocked.
func WithDisallowedTools(tools ...string) Option {
	return func(o *Options) {
		o.DisallowedTools = tools
	}
}

// ===== Tool Servers =====

// WithToolServer exposes an in-process tool server to the agent. Each of
// the server's tools is automatically added to AllowedTools under the
// name mcp__<server>__<tool>.
func WithToolServer(server *toolserver.Server) Option {
	return func(o *Options) {
		if server == nil {
			return
		}

		if o.ToolServers == nil {
			o.ToolServers = make(map[string]*toolserver.Server, 1)
		}

		o.ToolServers[server.Name()] = server

		for _, name := range server.ToolNames() {
			o.AllowedTools = append(o.AllowedTools, "mcp__"+server.Name()+"__"+name)
		}
	}
}

// WithTools registers standalone tools as an in-process server named
// "tools" (tool names: mcp__tools__<name>). Each tool is automatically
// added to AllowedTools.
func WithTools(tools ...*Tool) Option {
	return func(o *Options) {
		if len(tools) == 0 {
			return
		}

		server := toolserver.NewServer("tools", "1.0.0")
		for _, t := range tools {
			server.Register(t.definition, t.handler)
		}

		WithToolServer(server)(o)
	}
}

// ===== Streaming and Budget =====

// WithIncludePartialMessages enables forwarding of incremental API events.
func WithIncludePartialMessages(include bool) Option {
	return func(o *Options) {
		o.IncludePartialMessages = include
	}
}

// WithMaxBudgetUSD sets a cost limit for the session in USD.
func WithMaxBudgetUSD(budget float64) Option {
	return func(o *Options) {
		o.MaxBudgetUSD = &budget
	}
}

// WithMaxBufferSize sets the maximum bytes for one stdout line.
func WithMaxBufferSize(size int) Option {
	return func(o *Options) {
		o.MaxBufferSize = &size
	}
}

// WithQueueSize sets the conversation queue capacity.
func WithQueueSize(size int) Option {
	return func(o *Options) {
		o.QueueSize = size
	}
}

// ===== Session =====

// WithContinueConversation resumes the most recent conversation.
func WithContinueConversation(cont bool) Option {
	return func(o *Options) {
		o.ContinueConversation = cont
	}
}

// WithResume sets a session ID to resume from.
func WithResume(sessionID string) Option {
	return func(o *Options) {
		o.Resume = sessionID
	}
}

// WithForkSession forks the resumed session to a new ID.
func WithForkSession(fork bool) Option {
	return func(o *Options) {
		o.ForkSession = fork
	}
}

// ===== Advanced =====

// WithExtraArgs provides arbitrary CLI flags to pass to the agent binary.
// If the value is nil, the flag is passed without a value (boolean flag).
func WithExtraArgs(args map[string]*string) Option {
	return func(o *Options) {
		o.ExtraArgs = args
	}
}

// WithStderr sets a callback invoked for each line of agent stderr.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithSkipVersionCheck disables the agent binary version probe.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *Options) {
		o.SkipVersionCheck = skip
	}
}

// WithInitializeTimeout bounds the initialize handshake.
func WithInitializeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.InitializeTimeout = &timeout
	}
}

// WithTerminateGrace sets how long Disconnect waits for the agent process
// to exit after closing stdin before killing it.
func WithTerminateGrace(grace time.Duration) Option {
	return func(o *Options) {
		o.TerminateGrace = grace
	}
}

// WithTransport injects a custom transport implementation.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
