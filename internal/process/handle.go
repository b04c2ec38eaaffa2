package process

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/agentwire/agentwire/internal/config"
	"github.com/agentwire/agentwire/internal/errors"
)

const (
	// DefaultMaxBufferSize caps a single stdout line.
	DefaultMaxBufferSize = 1024 * 1024 // 1MB

	// maxStderrBufferSize caps the stderr kept for exit-error reporting.
	// The callback still receives every line; only the retained buffer
	// stops growing.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

	// DefaultTerminateGrace is how long Terminate waits for a voluntary
	// exit after closing stdin before killing the process.
	DefaultTerminateGrace = 5 * time.Second
)

// Command is a fully resolved agent invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// ExitStatus is the one-shot record of how the process ended.
type ExitStatus struct {
	Code int
	Err  error
}

// Handle owns an agent subprocess and its three pipes, exposing it as a
// line-oriented transport.
type Handle struct {
	log            *slog.Logger
	command        Command
	stderrCallback func(string)
	maxBufferSize  int
	terminateGrace time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu            sync.Mutex // guards stdin writes and lifecycle flags
	stdinClosed   bool
	closing       bool
	readerStarted bool

	readyOnce sync.Once
	ready     chan struct{} // closed when the first stdout line arrives

	exitOnce sync.Once
	exited   chan struct{} // closed when the exit record is set
	exit     ExitStatus
}

// Compile-time verification that Handle implements the Transport interface.
var _ config.Transport = (*Handle)(nil)

// HandleConfig tunes a Handle beyond the command itself.
type HandleConfig struct {
	// Stderr receives agent stderr output line by line.
	Stderr func(string)

	// MaxBufferSize caps a single stdout line. Zero uses the default.
	MaxBufferSize int

	// TerminateGrace is the Close() grace period. Zero uses the default.
	TerminateGrace time.Duration
}

// New creates a Handle for the given command. The process is not spawned
// until Start.
func New(log *slog.Logger, command Command, cfg HandleConfig) *Handle {
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = DefaultMaxBufferSize
	}

	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}

	return &Handle{
		log:            log.With("component", "process"),
		command:        command,
		stderrCallback: cfg.Stderr,
		maxBufferSize:  cfg.MaxBufferSize,
		terminateGrace: cfg.TerminateGrace,
		ready:          make(chan struct{}),
		exited:         make(chan struct{}),
	}
}

// Start spawns the agent process and wires up its pipes.
//
// Returns *SpawnError when the process cannot be launched.
func (h *Handle) Start(ctx context.Context) error {
	h.log.Info("Starting agent subprocess", "path", h.command.Path)

	dir := h.command.Dir

	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		dir = wd
	}

	//nolint:gosec // G204: spawning a caller-selected binary is the point
	cmd := exec.Command(h.command.Path, h.command.Args...)
	cmd.Dir = dir
	cmd.Env = h.command.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return h.spawnError(fmt.Errorf("stdin pipe: %w", err))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return h.spawnError(fmt.Errorf("stdout pipe: %w", err))
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return h.spawnError(fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		h.log.Error("Failed to start agent process", "error", err)

		return h.spawnError(err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.stdin = stdin
	h.stdout = stdout
	h.stderr = stderr
	h.mu.Unlock()

	h.log.Info("Agent subprocess started", "pid", cmd.Process.Pid)

	// Respect caller cancellation during startup; the reader loop owns
	// shutdown afterwards.
	if ctx.Err() != nil {
		_ = h.Close()

		return ctx.Err()
	}

	return nil
}

func (h *Handle) spawnError(err error) *errors.SpawnError {
	return &errors.SpawnError{Path: h.command.Path, Err: err}
}

// WaitReady blocks until the first stdout line has been observed, the
// process exits, or the timeout elapses.
func (h *Handle) WaitReady(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.ready:
		return nil
	case <-h.exited:
		return h.exitError()
	case <-timer.C:
		return fmt.Errorf("no output within %s: %w", timeout, errors.ErrNotReady)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadMessages streams raw stdout lines.
//
// Each received line closes over the ready signal exactly once, feeds the
// line channel, and blocks when the consumer does not drain. When stdout
// ends the process is reaped and a failure exit is reported on the error
// channel, unless the shutdown was intentional. Both channels close when
// the goroutine exits.
func (h *Handle) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	h.mu.Lock()
	h.readerStarted = true
	stdout, stderr := h.stdout, h.stderr
	h.mu.Unlock()

	var (
		stderrWg  sync.WaitGroup
		stderrBuf strings.Builder
		stderrMu  sync.Mutex
	)

	// Stderr must be fully read before Wait(); the pipe is closed by the
	// process exit (or kill), which unblocks Scan.
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuf.Len() < maxStderrBufferSize {
				if stderrBuf.Len() > 0 {
					stderrBuf.WriteString("\n")
				}

				stderrBuf.WriteString(line)
			}

			stderrMu.Unlock()

			if h.stderrCallback != nil {
				h.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			h.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(lines)
		defer close(errs)
		defer h.log.Debug("Read loop stopped")

		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, h.maxBufferSize)
		scanner.Buffer(buf, h.maxBufferSize)

		lineCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			default:
			}

			// Scanner reuses its buffer between iterations.
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			h.readyOnce.Do(func() { close(h.ready) })

			lineCount++
			h.log.Debug("Received line from agent", "line_count", lineCount)

			select {
			case lines <- line:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			h.log.Error("Scanner error while reading agent output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		stderrWg.Wait()

		h.log.Debug("Waiting for agent process to exit")

		err := h.cmd.Wait()

		stderrMu.Lock()
		stderrOutput := cleanStderr(stderrBuf.String())
		stderrMu.Unlock()

		h.recordExit(err, stderrOutput)

		h.mu.Lock()
		intentional := h.closing
		h.mu.Unlock()

		if err != nil && !intentional {
			exitErr := h.exitError()
			h.log.Error("Agent process exited with error", "error", exitErr)

			errs <- exitErr

			return
		}

		if err == nil {
			h.log.Info("Agent process exited cleanly")
		} else {
			h.log.Debug("Agent process terminated during shutdown")
		}
	}()

	return lines, errs
}

// recordExit sets the one-shot exit record and releases waiters.
func (h *Handle) recordExit(err error, stderrOutput string) {
	h.exitOnce.Do(func() {
		code := 0

		if err != nil {
			code = -1
			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				code = exitErr.ExitCode()
			}

			h.exit = ExitStatus{
				Code: code,
				Err: &errors.ProcessExitError{
					ExitCode: code,
					Stderr:   stderrOutput,
					Err:      err,
				},
			}
		}

		close(h.exited)
	})
}

// exitError returns the recorded exit failure, or a generic exit error
// when the process ended before the record was populated.
func (h *Handle) exitError() error {
	select {
	case <-h.exited:
		if h.exit.Err != nil {
			return h.exit.Err
		}

		return &errors.ProcessExitError{ExitCode: h.exit.Code}
	default:
		return &errors.ProcessExitError{}
	}
}

// Exited returns a channel closed once the exit record is set.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

// ExitStatus returns the exit record; ok is false while the process is
// still running.
func (h *Handle) ExitStatus() (ExitStatus, bool) {
	select {
	case <-h.exited:
		return h.exit, true
	default:
		return ExitStatus{}, false
	}
}

// SendMessage writes one message to the agent's stdin, appending a newline
// when missing. Safe for concurrent use; a cancelled context during a
// blocked write closes stdin to unblock it.
func (h *Handle) SendMessage(ctx context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stdin == nil {
		return errors.ErrNotConnected
	}

	if h.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	h.log.Debug("Sending message to agent", "data_len", len(data))

	// Copy instead of append: the caller's slice may have spare capacity.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		framed := make([]byte, len(data)+1)
		copy(framed, data)
		framed[len(data)] = '\n'
		data = framed
	}

	done := make(chan error, 1)

	go func() {
		_, err := h.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			h.log.Error("Failed to write to agent stdin", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil
	case <-ctx.Done():
		h.log.Debug("Context cancelled during write, closing stdin")

		_ = h.stdin.Close()
		h.stdinClosed = true

		// Bound the wait so an ignored close cannot leak the goroutine
		// silently.
		select {
		case <-done:
		case <-time.After(1 * time.Second):
			h.log.Warn("Write goroutine did not exit after stdin close")
		}

		return ctx.Err()
	}
}

// IsReady reports whether the process is running with stdin open.
func (h *Handle) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.cmd != nil && h.cmd.Process != nil && h.stdin != nil && !h.stdinClosed
}

// EndInput closes stdin to signal end of input. The agent finishes pending
// work and exits on its own.
func (h *Handle) EndInput() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.closeStdinLocked()
}

func (h *Handle) closeStdinLocked() error {
	if h.stdin == nil || h.stdinClosed {
		return nil
	}

	h.log.Debug("Closing stdin pipe")

	err := h.stdin.Close()
	h.stdinClosed = true

	return err
}

// Terminate shuts the process down gracefully: close stdin, wait up to
// grace for a voluntary exit, then kill. Cleanup failures are logged, not
// returned; the process is gone either way.
func (h *Handle) Terminate(grace time.Duration) error {
	h.mu.Lock()

	h.closing = true

	if err := h.closeStdinLocked(); err != nil {
		h.log.Debug("Closing stdin during terminate", "error", err)
	}

	cmd := h.cmd
	readerStarted := h.readerStarted

	h.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-h.exited:
			h.log.Debug("Agent process exited within grace period")

			return nil
		case <-timer.C:
		}
	}

	h.log.Debug("Grace period elapsed, killing agent process", "pid", cmd.Process.Pid)

	if err := cmd.Process.Kill(); err != nil {
		h.log.Debug("Killing agent process", "error", err)
	}

	// Without a reader loop nobody calls Wait; reap here so the exit
	// record is still set exactly once.
	if !readerStarted {
		go func() {
			err := cmd.Wait()
			h.recordExit(err, "")
		}()
	}

	return nil
}

// Close terminates the process with the configured grace period.
func (h *Handle) Close() error {
	return h.Terminate(h.terminateGrace)
}

// cleanStderr strips the JS runtime's minified source-context lines
// ("1234 | <code>") from stderr, keeping error messages and stack traces.
func cleanStderr(stderr string) string {
	if stderr == "" {
		return ""
	}

	var cleaned strings.Builder

	for line := range strings.SplitSeq(stderr, "\n") {
		if isSourceContextLine(strings.TrimSpace(line)) {
			continue
		}

		if cleaned.Len() > 0 {
			cleaned.WriteString("\n")
		}

		cleaned.WriteString(line)
	}

	return strings.TrimSpace(cleaned.String())
}

func isSourceContextLine(line string) bool {
	pipeIdx := strings.Index(line, "|")
	if pipeIdx < 1 {
		return false
	}

	prefix := strings.TrimSpace(line[:pipeIdx])
	if prefix == "" {
		return false
	}

	for _, ch := range prefix {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
