// Package agentwire drives an external agent CLI over a newline-delimited
// JSON protocol.
//
// It spawns the agent as a subprocess, exchanges conversation messages
// over stdin/stdout, and multiplexes a control protocol on the same
// streams for hooks, permission decisions, and in-process tool servers.
// Both one-shot queries and interactive multi-turn sessions are
// supported.
//
// # Basic Usage
//
// For simple, one-shot prompts, use the Query function:
//
//	ctx := context.Background()
//	for msg, err := range agentwire.Query(ctx, "What is 2+2?",
//	    agentwire.WithPermissionMode(agentwire.PermissionModeAcceptEdits),
//	    agentwire.WithMaxTurns(1),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    switch m := msg.(type) {
//	    case *agentwire.AssistantMessage:
//	        for _, block := range m.Content {
//	            if text, ok := block.(*agentwire.TextBlock); ok {
//	                fmt.Println(text.Text)
//	            }
//	        }
//	    case *agentwire.ResultMessage:
//	        fmt.Printf("Completed in %dms\n", m.DurationMs)
//	    }
//	}
//
// # Interactive Sessions
//
// For multi-turn conversations, use NewSession or the WithSession helper:
//
//	// Using WithSession for automatic lifecycle management
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
//	})
//
//	// Or using NewSession directly for more control
//	sess := agentwire.NewSession()
//	defer sess.Disconnect()
//
//	err := sess.Connect(ctx,
//	    agentwire.WithLogger(slog.Default()),
//	    agentwire.WithPermissionMode(agentwire.PermissionModeAcceptEdits),
//	)
//
// # Callbacks
//
// Hooks observe and can block lifecycle events; a permission callback
// decides each tool call; tool servers expose Go functions the agent can
// invoke. All three run in-process and answer the agent's control
// requests over stdin:
//
//	deny := func(ctx context.Context, toolName string, input map[string]any,
//	    permCtx *agentwire.PermissionContext) (agentwire.PermissionResult, error) {
//	    if toolName == "Bash" {
//	        return &agentwire.PermissionResultDeny{Message: "no shell access"}, nil
//	    }
//	    return &agentwire.PermissionResultAllow{}, nil
//	}
//
//	for msg, err := range agentwire.Query(ctx, prompt, agentwire.WithCanUseTool(deny)) {
//	    // ...
//	}
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	for msg, err := range agentwire.Query(ctx, "Hello", agentwire.WithLogger(logger)) {
//	    // ...
//	}
//
// # Error Handling
//
// Typed errors cover the failure scenarios:
//
//	for msg, err := range agentwire.Query(ctx, prompt) {
//	    if err != nil {
//	        if spawnErr, ok := errors.AsType[*agentwire.SpawnError](err); ok {
//	            log.Fatalf("agent binary not found, searched: %v", spawnErr.SearchedPaths)
//	        }
//	        if exitErr, ok := errors.AsType[*agentwire.ProcessExitError](err); ok {
//	            log.Fatalf("agent exited with code %d: %s", exitErr.ExitCode, exitErr.Stderr)
//	        }
//	        log.Fatal(err)
//	    }
//	}
//
// # Requirements
//
// The agent CLI must be installed and available on PATH. A custom binary
// location can be set with the WithBinPath option.
package agentwire
