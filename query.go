package agentwire

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/agentwire/agentwire/internal/config"
	"github.com/agentwire/agentwire/internal/session"
)

// queryRequiresStreamingMode reports whether Query needs bidirectional
// stdin. Hooks, permission callbacks, and in-process tool servers all
// answer control requests over stdin, which print mode never reads.
func queryRequiresStreamingMode(options *config.Options) bool {
	return len(options.Hooks) > 0 ||
		options.CanUseTool != nil ||
		len(options.ToolServers) > 0
}

// Query executes a one-shot prompt and returns an iterator of messages.
//
// By default, logging is disabled. Use WithLogger to enable logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	for msg, err := range agentwire.Query(ctx, "What is 2+2?",
//	    agentwire.WithLogger(logger),
//	    agentwire.WithPermissionMode(agentwire.PermissionModeAcceptEdits),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // handle msg
//	}
//
// The iterator yields messages as they arrive, including assistant
// responses, tool use, and a final result message. Errors during setup or
// execution are yielded inline.
//
// Query supports hooks, permission callbacks, and in-process tool servers.
// Because those callbacks need bidirectional stdin, configuring any of
// them routes the query through a streaming session automatically; the
// Query API is unchanged.
//
// Error Handling:
//
//   - Decode errors: a message that cannot be decoded is yielded as an
//     error and iteration continues with the next message.
//
//   - Fatal errors: process exit, protocol violations, and context
//     cancellation stop iteration after yielding the error.
//
// Callers can always stop early by breaking from the loop.
func Query(
	ctx context.Context,
	prompt string,
	opts ...Option,
) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		options := applyOptions(opts)

		if queryRequiresStreamingMode(options) {
			inner := session.New(options)

			if err := inner.Connect(ctx); err != nil {
				yield(nil, err)

				return
			}

			defer func() {
				_ = inner.Disconnect()
			}()

			if err := inner.Send(ctx, prompt); err != nil {
				yield(nil, err)

				return
			}

			for msg, err := range inner.Messages(ctx) {
				if !yield(msg, err) {
					return
				}
			}

			return
		}

		for msg, err := range session.OneShot(ctx, prompt, options) {
			if !yield(msg, err) {
				return
			}
		}
	}
}

// QueryStream executes a streaming query over multiple input turns.
//
// The turns iterator yields user turns that are sent to the agent via
// stdin in streaming mode. Input ends when the iterator completes; when
// callbacks are configured, stdin stays open until the turn's result
// arrives so control responses can still be written.
//
// The output iterator yields messages as they arrive, across all turns,
// until the agent process exits. Errors are yielded inline, as with
// Query.
//
// Example usage:
//
//	turns := agentwire.TurnsFromSlice([]*agentwire.Turn{
//	    agentwire.NewTurn("Hello", "s1"),
//	    agentwire.NewTurn("How are you?", "s1"),
//	})
//
//	for msg, err := range agentwire.QueryStream(ctx, turns) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // Handle messages
//	}
func QueryStream(
	ctx context.Context,
	turns iter.Seq[*Turn],
	opts ...Option,
) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		options := applyOptions(opts)

		inner := session.New(options)

		if err := inner.ConnectWithStream(ctx, turns); err != nil {
			yield(nil, err)

			return
		}

		defer func() {
			_ = inner.Disconnect()
		}()

		for msg, err := range inner.Stream(ctx) {
			// Clean end of stream: the process exited after input closed.
			if errors.Is(err, io.EOF) {
				return
			}

			if !yield(msg, err) {
				return
			}
		}
	}
}
