package session

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/agentwire/agentwire/internal/cli"
	"github.com/agentwire/agentwire/internal/config"
	"github.com/agentwire/agentwire/internal/message"
	"github.com/agentwire/agentwire/internal/process"
)

// OneShot runs a single prompt in print mode: the prompt goes on the
// command line, stdin closes right after spawn, and messages are yielded
// until the process exits. Print mode carries no control protocol, so
// callers with hooks, permission callbacks, or tool servers must go
// through a streaming session instead.
func OneShot(ctx context.Context, prompt string, options *config.Options) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		if options == nil {
			options = &config.Options{}
		}

		log := options.Logger
		if log == nil {
			log = slog.New(slog.DiscardHandler)
		}

		transport, err := oneShotTransport(ctx, prompt, options, log)
		if err != nil {
			yield(nil, err)

			return
		}

		if err := transport.Start(ctx); err != nil {
			yield(nil, fmt.Errorf("start transport: %w", err))

			return
		}

		defer func() {
			_ = transport.Close()
		}()

		// Nothing goes to stdin in print mode.
		if err := transport.EndInput(); err != nil {
			yield(nil, fmt.Errorf("end input: %w", err))

			return
		}

		lines, errs := transport.ReadMessages(ctx)

		for {
			select {
			case raw, ok := <-lines:
				if !ok {
					return
				}

				msg, err := message.Decode(log, raw)
				if err != nil {
					if message.IsUnknownType(err) {
						log.Debug("Skipping unknown message type")

						continue
					}

					if !yield(nil, err) {
						return
					}

					continue
				}

				if !yield(msg, nil) {
					return
				}

				if _, done := msg.(*message.ResultMessage); done {
					return
				}

			case err, ok := <-errs:
				if !ok {
					return
				}

				yield(nil, err)

				return

			case <-ctx.Done():
				yield(nil, ctx.Err())

				return
			}
		}
	}
}

func oneShotTransport(ctx context.Context, prompt string, options *config.Options, log *slog.Logger) (config.Transport, error) {
	if options.Transport != nil {
		return options.Transport, nil
	}

	locator := cli.NewLocator(options.BinPath, options.SkipVersionCheck, log)

	path, err := locator.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("locate agent binary: %w", err)
	}

	maxBuffer := 0
	if options.MaxBufferSize != nil {
		maxBuffer = *options.MaxBufferSize
	}

	return process.New(log, process.Command{
		Path: path,
		Args: cli.BuildArgs(prompt, options, false),
		Dir:  options.Cwd,
		Env:  cli.BuildEnvironment(options),
	}, process.HandleConfig{
		Stderr:         options.Stderr,
		MaxBufferSize:  maxBuffer,
		TerminateGrace: options.TerminateGrace,
	}), nil
}
