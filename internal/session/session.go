// Package session composes the process, router, and dispatch layers into
// the interactive session the public API exposes.
package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentwire/agentwire/internal/cli"
	"github.com/agentwire/agentwire/internal/config"
	"github.com/agentwire/agentwire/internal/dispatch"
	"github.com/agentwire/agentwire/internal/errors"
	"github.com/agentwire/agentwire/internal/message"
	"github.com/agentwire/agentwire/internal/process"
	"github.com/agentwire/agentwire/internal/router"
)

const (
	// defaultInitializeTimeout bounds the initialize handshake.
	defaultInitializeTimeout = 60 * time.Second

	// initTimeoutEnv overrides the initialize timeout, in seconds.
	initTimeoutEnv = "AGENTWIRE_INIT_TIMEOUT"

	// interruptTimeout bounds the interrupt control request.
	interruptTimeout = 5 * time.Second

	// defaultStreamCloseTimeout bounds how long streamed input waits for
	// the turn result before closing stdin anyway.
	defaultStreamCloseTimeout = 60 * time.Second

	// streamCloseTimeoutEnv overrides the stream close timeout, in seconds.
	streamCloseTimeoutEnv = "AGENTWIRE_STREAM_CLOSE_TIMEOUT"

	// messageBufferSize buffers the forwarded conversation stream.
	messageBufferSize = 10
)

// Session is an interactive bidirectional conversation with an agent
// subprocess. Sessions are single-use: after Disconnect, create a new one.
type Session struct {
	log     *slog.Logger
	options *config.Options

	transport config.Transport
	router    *router.Router
	table     *dispatch.Table

	defaultSID string

	serverInfoMu sync.RWMutex
	serverInfo   map[string]any

	messages   chan delivery
	resultSeen chan struct{}
	resultOnce sync.Once

	errMu    sync.RWMutex
	fatalErr error

	eg *errgroup.Group

	mu        sync.Mutex
	connected bool
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a disconnected session. Call Connect before use.
func New(options *config.Options) *Session {
	if options == nil {
		options = &config.Options{}
	}

	return &Session{
		options:    options,
		messages:   make(chan delivery, messageBufferSize),
		resultSeen: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// delivery is one forwarded conversation item: a message or an inline,
// non-terminal error.
type delivery struct {
	msg message.Message
	err error
}

// Connect spawns the agent process, starts the router, registers the
// dispatch handlers, and performs the initialize handshake.
func (s *Session) Connect(ctx context.Context) error {
	return s.connect(ctx, nil)
}

// ConnectWithStream connects and feeds the given turns to the agent's
// stdin. Input ends when the iterator completes.
func (s *Session) ConnectWithStream(ctx context.Context, turns iter.Seq[*message.Turn]) error {
	return s.connect(ctx, turns)
}

func (s *Session) connect(ctx context.Context, turns iter.Seq[*message.Turn]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSessionClosed
	}

	if s.connected {
		return errors.ErrAlreadyConnected
	}

	log := s.options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s.log = log.With("component", "session")

	transport, err := s.buildTransport(ctx, log)
	if err != nil {
		return err
	}

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	s.transport = transport

	s.router = router.New(log, transport, router.Config{QueueSize: s.options.QueueSize})

	s.table = dispatch.NewTable(log, dispatch.Config{
		Hooks:       s.options.Hooks,
		CanUseTool:  s.options.CanUseTool,
		ToolServers: s.options.ToolServers,
	})
	s.table.Register(s.router)

	if err := s.router.Start(ctx); err != nil {
		_ = transport.Close()

		return fmt.Errorf("start router: %w", err)
	}

	if err := s.initialize(ctx); err != nil {
		s.router.Close()
		_ = transport.Close()

		return err
	}

	s.router.MarkActive()

	s.defaultSID = uuid.NewString()

	// Goroutines outlive the caller's (possibly deadlined) connect
	// context; shutdown is signalled through s.done instead.
	var egCtx context.Context

	s.eg, egCtx = errgroup.WithContext(context.Background())

	s.eg.Go(func() error {
		return s.forwardLoop(egCtx)
	})

	if turns != nil {
		s.eg.Go(func() error {
			return s.streamTurns(egCtx, turns)
		})
	}

	s.connected = true
	s.log.Info("Session connected", "session_id", s.defaultSID)

	return nil
}

// buildTransport returns the injected transport or spawns the agent
// binary in streaming mode.
func (s *Session) buildTransport(ctx context.Context, log *slog.Logger) (config.Transport, error) {
	if s.options.Transport != nil {
		s.log.Debug("Using injected custom transport")

		return s.options.Transport, nil
	}

	locator := cli.NewLocator(s.options.BinPath, s.options.SkipVersionCheck, log)

	path, err := locator.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("locate agent binary: %w", err)
	}

	maxBuffer := 0
	if s.options.MaxBufferSize != nil {
		maxBuffer = *s.options.MaxBufferSize
	}

	handle := process.New(log, process.Command{
		Path: path,
		Args: cli.BuildArgs("", s.options, true),
		Dir:  s.options.Cwd,
		Env:  cli.BuildEnvironment(s.options),
	}, process.HandleConfig{
		Stderr:         s.options.Stderr,
		MaxBufferSize:  maxBuffer,
		TerminateGrace: s.options.TerminateGrace,
	})

	return handle, nil
}

// initialize announces hooks and callbacks to the agent and records the
// server info from the response.
func (s *Session) initialize(ctx context.Context) error {
	payload := map[string]any{
		"hooks": s.table.HooksConfig(),
	}

	resp, err := s.router.SendRequest(ctx, "initialize", payload, s.initializeTimeout())
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.serverInfoMu.Lock()
	s.serverInfo = resp.Payload()
	s.serverInfoMu.Unlock()

	return nil
}

func (s *Session) initializeTimeout() time.Duration {
	if s.options.InitializeTimeout != nil {
		return *s.options.InitializeTimeout
	}

	if raw := os.Getenv(initTimeoutEnv); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	return defaultInitializeTimeout
}

// forwardLoop moves conversation items from the router queue to the
// session's message channel. Errors travel inline; terminal errors are
// followed by the router closing its queue, which closes s.messages in
// turn.
func (s *Session) forwardLoop(ctx context.Context) error {
	defer close(s.messages)
	defer s.log.Debug("Forward loop stopped")

	conversation := s.router.Conversation()

	for {
		select {
		case item, ok := <-conversation:
			if !ok {
				return nil
			}

			if item.Err != nil {
				s.log.Warn("Conversation error", "error", item.Err)
			} else if _, isResult := item.Message.(*message.ResultMessage); isResult {
				s.resultOnce.Do(func() { close(s.resultSeen) })
			}

			select {
			case s.messages <- delivery{msg: item.Message, err: item.Err}:
			case <-s.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-s.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// streamTurns writes each turn to stdin, then ends input so the agent can
// finish and exit.
func (s *Session) streamTurns(ctx context.Context, turns iter.Seq[*message.Turn]) (err error) {
	defer func() {
		s.router.MarkDraining()

		if endErr := s.transport.EndInput(); endErr != nil && err == nil {
			err = fmt.Errorf("end input: %w", endErr)
		}
	}()

	for turn := range turns {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}

		if err := s.transport.SendMessage(ctx, data); err != nil {
			return fmt.Errorf("send turn: %w", err)
		}

		s.log.Debug("Sent turn to agent")
	}

	s.log.Debug("Finished streaming turns")

	// Control responses for hooks, permissions, and tool calls travel over
	// stdin, so it must stay open until the turn completes.
	if s.table.Active() {
		timeout := defaultStreamCloseTimeout
		if raw := os.Getenv(streamCloseTimeoutEnv); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
		}

		select {
		case <-s.resultSeen:
			s.log.Debug("Result received, closing stdin")
		case <-time.After(timeout):
			s.log.Warn("Timed out waiting for result before closing stdin", "timeout", timeout)
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (s *Session) setFatalError(err error) {
	if err == nil {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

func (s *Session) fatalError() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.fatalErr
}

func (s *Session) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

// Send submits a user turn. The optional sessionID overrides the
// generated default conversation id.
func (s *Session) Send(ctx context.Context, text string, sessionID ...string) error {
	if !s.isConnected() {
		return errors.ErrNotConnected
	}

	sid := s.defaultSID
	if len(sessionID) > 0 && sessionID[0] != "" {
		sid = sessionID[0]
	}

	s.log.Debug("Sending user turn", "text_len", len(text), "session_id", sid)

	turn := message.NewTurn(text, sid)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	return s.transport.SendMessage(ctx, data)
}

// receive blocks for the next conversation message. Returns io.EOF when
// the session ends normally.
func (s *Session) receive(ctx context.Context) (message.Message, error) {
	if err := s.fatalError(); err != nil {
		return nil, err
	}

	select {
	case d, ok := <-s.messages:
		if !ok {
			if err := s.router.FatalError(); err != nil {
				s.setFatalError(err)

				return nil, err
			}

			if s.eg != nil {
				if err := s.eg.Wait(); err != nil {
					s.setFatalError(err)

					return nil, err
				}
			}

			return nil, io.EOF
		}

		return d.msg, d.err

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Messages yields conversation messages until the turn's result message,
// which is yielded last.
func (s *Session) Messages(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		if !s.isConnected() {
			yield(nil, errors.ErrNotConnected)

			return
		}

		for {
			msg, err := s.receive(ctx)
			if err != nil {
				if !yield(nil, err) {
					return
				}

				// Decode errors are recoverable; everything else ends
				// the stream.
				if isParseError(err) {
					continue
				}

				return
			}

			if !yield(msg, nil) {
				return
			}

			if _, ok := msg.(*message.ResultMessage); ok {
				return
			}
		}
	}
}

// Stream yields conversation messages indefinitely, across turns, until
// the session ends or the context is cancelled.
func (s *Session) Stream(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		if !s.isConnected() {
			yield(nil, errors.ErrNotConnected)

			return
		}

		for {
			msg, err := s.receive(ctx)
			if err != nil {
				if !yield(nil, err) {
					return
				}

				if isParseError(err) {
					continue
				}

				return
			}

			if !yield(msg, nil) {
				return
			}
		}
	}
}

func isParseError(err error) bool {
	var parseErr *errors.MessageParseError

	return stderrors.As(err, &parseErr)
}

// Interrupt asks the agent to stop its current turn. A timeout leaves the
// session usable.
func (s *Session) Interrupt(ctx context.Context) error {
	if !s.isConnected() {
		return errors.ErrNotConnected
	}

	s.log.Info("Sending interrupt")

	if _, err := s.router.SendRequest(ctx, "interrupt", nil, interruptTimeout); err != nil {
		return fmt.Errorf("send interrupt: %w", err)
	}

	return nil
}

// ServerInfo returns the agent's initialize response payload, or nil
// before Connect.
func (s *Session) ServerInfo() map[string]any {
	s.serverInfoMu.RLock()
	defer s.serverInfoMu.RUnlock()

	if s.serverInfo == nil {
		return nil
	}

	info := make(map[string]any, len(s.serverInfo))
	for k, v := range s.serverInfo {
		info[k] = v
	}

	return info
}

// Disconnect shuts the session down: the router closes, the process is
// terminated with the configured grace period, and the background
// goroutines are awaited. Safe to call more than once; a second call is a
// no-op.
func (s *Session) Disconnect() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		wasConnected := s.connected
		s.connected = false
		s.mu.Unlock()

		if !wasConnected {
			return
		}

		s.log.Info("Disconnecting session")

		close(s.done)

		if s.router != nil {
			s.router.Close()
		}

		if s.transport != nil {
			closeErr = s.transport.Close()
		}

		if s.eg != nil {
			if err := s.eg.Wait(); err != nil && closeErr == nil {
				closeErr = err
			}
		}

		s.log.Info("Session disconnected")
	})

	return closeErr
}
