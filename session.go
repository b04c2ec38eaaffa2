package agentwire

import (
	"context"
	"iter"
	"sync"

	"github.com/agentwire/agentwire/internal/errors"
	"github.com/agentwire/agentwire/internal/session"
)

// Session is an interactive, stateful, multi-turn conversation with the
// agent.
//
// Unlike the one-shot Query function, a Session keeps the agent process
// alive across exchanges and supports interruption and bidirectional
// callbacks.
//
// Lifecycle: sessions are single-use. After Disconnect, create a new one
// with NewSession.
//
// Example usage:
//
//	sess := agentwire.NewSession()
//	defer sess.Disconnect()
//
//	if err := sess.Connect(ctx,
//	    agentwire.WithLogger(slog.Default()),
//	    agentwire.WithPermissionMode(agentwire.PermissionModeAcceptEdits),
//	); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := sess.Send(ctx, "What is 2+2?"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Receive this turn's messages (stops after the result message)
//	for msg, err := range sess.Messages(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // Process message...
//	}
type Session interface {
	// Connect spawns the agent process and performs the control protocol
	// handshake. Must be called before any other method.
	Connect(ctx context.Context, opts ...Option) error

	// ConnectWithStream connects and feeds the given turns to the agent.
	// The iterator runs in a separate goroutine; input ends when it
	// completes.
	ConnectWithStream(ctx context.Context, turns iter.Seq[*Turn], opts ...Option) error

	// Send submits a user turn. It returns after the turn is written;
	// use Messages or Stream to read the response. The optional sessionID
	// targets a named conversation; by default turns go to a generated
	// conversation id.
	Send(ctx context.Context, text string, sessionID ...string) error

	// Messages yields this turn's messages as they arrive, stopping after
	// the result message.
	Messages(ctx context.Context) iter.Seq2[Message, error]

	// Stream yields messages indefinitely, across turns, until the
	// session ends or the context is cancelled.
	Stream(ctx context.Context) iter.Seq2[Message, error]

	// Interrupt asks the agent to stop its current turn. A failed or
	// timed-out interrupt leaves the session usable.
	Interrupt(ctx context.Context) error

	// ServerInfo returns the agent's initialize response, or nil before
	// Connect.
	ServerInfo() map[string]any

	// Disconnect terminates the session and reaps the agent process.
	// After Disconnect the session cannot be reused. Safe to call more
	// than once.
	Disconnect() error
}

// NewSession creates a disconnected session. Call Connect with options to
// begin:
//
//	sess := agentwire.NewSession()
//	err := sess.Connect(ctx,
//	    agentwire.WithLogger(slog.Default()),
//	    agentwire.WithMaxTurns(10),
//	)
func NewSession() Session {
	return &sessionImpl{}
}

type sessionImpl struct {
	mu    sync.Mutex
	inner *session.Session
}

var _ Session = (*sessionImpl)(nil)

func (s *sessionImpl) Connect(ctx context.Context, opts ...Option) error {
	inner, err := s.setup(opts)
	if err != nil {
		return err
	}

	return inner.Connect(ctx)
}

func (s *sessionImpl) ConnectWithStream(
	ctx context.Context,
	turns iter.Seq[*Turn],
	opts ...Option,
) error {
	inner, err := s.setup(opts)
	if err != nil {
		return err
	}

	return inner.ConnectWithStream(ctx, turns)
}

func (s *sessionImpl) setup(opts []Option) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inner != nil {
		return nil, errors.ErrAlreadyConnected
	}

	s.inner = session.New(applyOptions(opts))

	return s.inner, nil
}

func (s *sessionImpl) get() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inner
}

func (s *sessionImpl) Send(ctx context.Context, text string, sessionID ...string) error {
	inner := s.get()
	if inner == nil {
		return errors.ErrNotConnected
	}

	return inner.Send(ctx, text, sessionID...)
}

func (s *sessionImpl) Messages(ctx context.Context) iter.Seq2[Message, error] {
	inner := s.get()
	if inner == nil {
		return func(yield func(Message, error) bool) {
			yield(nil, errors.ErrNotConnected)
		}
	}

	return inner.Messages(ctx)
}

func (s *sessionImpl) Stream(ctx context.Context) iter.Seq2[Message, error] {
	inner := s.get()
	if inner == nil {
		return func(yield func(Message, error) bool) {
			yield(nil, errors.ErrNotConnected)
		}
	}

	return inner.Stream(ctx)
}

func (s *sessionImpl) Interrupt(ctx context.Context) error {
	inner := s.get()
	if inner == nil {
		return errors.ErrNotConnected
	}

	return inner.Interrupt(ctx)
}

func (s *sessionImpl) ServerInfo() map[string]any {
	inner := s.get()
	if inner == nil {
		return nil
	}

	return inner.ServerInfo()
}

func (s *sessionImpl) Disconnect() error {
	inner := s.get()
	if inner == nil {
		return nil
	}

	return inner.Disconnect()
}
