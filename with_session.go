package agentwire

import (
	"context"
	"fmt"
)

// WithSession manages session lifecycle with automatic cleanup.
//
// This helper creates a session, connects it with the provided options,
// executes the callback, and ensures cleanup via Disconnect when done.
//
// The callback receives a connected Session ready for use. If the
// callback returns an error, it is returned to the caller. If Disconnect
// fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := agentwire.WithSession(ctx, func(s agentwire.Session) error {
//	    if err := s.Send(ctx, "Hello"); err != nil {
//	        return err
//	    }
//	    for msg, err := range s.Messages(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        // process message...
//	    }
//	    return nil
//	},
//	    agentwire.WithLogger(log),
//	    agentwire.WithPermissionMode(agentwire.PermissionModeAcceptEdits),
//	)
func WithSession(ctx context.Context, fn func(Session) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	sess := NewSession()
	if err := sess.Connect(ctx, opts...); err != nil {
		return fmt.Errorf("failed to connect session: %w", err)
	}

	defer func() {
		if closeErr := sess.Disconnect(); closeErr != nil {
			log.Warn("failed to disconnect session", "error", closeErr)
		}
	}()

	return fn(sess)
}
