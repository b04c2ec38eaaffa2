package config

import (
	"log/slog"
	"time"

	"github.com/agentwire/agentwire/internal/hook"
	"github.com/agentwire/agentwire/internal/permission"
	"github.com/agentwire/agentwire/internal/toolserver"
)

// Options configures a session or one-shot query.
type Options struct {
	// Logger receives debug and lifecycle output. Nil disables logging.
	Logger *slog.Logger

	// SystemPrompt replaces the agent's default system prompt.
	SystemPrompt string

	// Model selects the model, e.g. "claude-sonnet-4-5".
	Model string

	// FallbackModel is used when the primary model is unavailable.
	FallbackModel string

	// PermissionMode controls how tool permissions are handled.
	PermissionMode permission.Mode

	// MaxTurns caps the number of conversation turns.
	MaxTurns int

	// Cwd is the working directory for the agent process.
	Cwd string

	// BinPath is an explicit path to the agent binary. When empty the
	// binary is discovered on PATH and in common install locations.
	BinPath string

	// Env adds environment variables for the agent process.
	Env map[string]string

	// Hooks registers lifecycle hooks, keyed by event.
	Hooks map[hook.Event][]*hook.Matcher

	// CanUseTool decides tool permissions. Nil leaves the decision to the
	// agent's own policy.
	CanUseTool permission.Callback

	// ToolServers are in-process tool servers exposed to the agent,
	// keyed by server name.
	ToolServers map[string]*toolserver.Server

	// AllowedTools are pre-approved tools that skip permission prompts.
	AllowedTools []string

	// DisallowedTools are tools blocked outright.
	DisallowedTools []string

	// IncludePartialMessages enables forwarding of incremental API events.
	IncludePartialMessages bool

	// MaxBudgetUSD caps session spend. Nil means no cap.
	MaxBudgetUSD *float64

	// User is an opaque user identifier for tracking.
	User string

	// ContinueConversation resumes the most recent conversation.
	ContinueConversation bool

	// Resume is a session id to resume from.
	Resume string

	// ForkSession forks a resumed session to a new id.
	ForkSession bool

	// ExtraArgs passes arbitrary extra flags to the agent binary. A nil
	// value means a bare boolean flag.
	ExtraArgs map[string]*string

	// MaxBufferSize caps stdout line buffering in bytes. Nil uses the
	// default.
	MaxBufferSize *int

	// QueueSize is the conversation queue capacity. Zero uses the default.
	QueueSize int

	// Stderr receives agent stderr output line by line.
	Stderr func(string)

	// SkipVersionCheck disables the binary version probe.
	SkipVersionCheck bool

	// InitializeTimeout bounds the initialize handshake. Nil uses the
	// default, overridable via AGENTWIRE_INIT_TIMEOUT.
	InitializeTimeout *time.Duration

	// TerminateGrace is how long Disconnect waits for the process to exit
	// after closing stdin before killing it. Zero uses the default.
	TerminateGrace time.Duration

	// Transport injects a custom transport. Nil spawns the agent binary.
	Transport Transport `json:"-"`
}
