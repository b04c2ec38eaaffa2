//go:build integration

// Package integration exercises the module against a real agent binary.
// Run with: go test -tags integration ./integration/
package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire"
)

const queryTimeout = 2 * time.Minute

// skipIfAgentNotInstalled skips the test when the agent binary is missing.
func skipIfAgentNotInstalled(t *testing.T, err error) {
	t.Helper()

	var spawnErr *agentwire.SpawnError
	if errors.As(err, &spawnErr) {
		t.Skip("agent binary not installed")
	}
}

func assistantText(msg agentwire.Message) string {
	m, ok := msg.(*agentwire.AssistantMessage)
	if !ok {
		return ""
	}

	var sb strings.Builder

	for _, block := range m.Content {
		if text, ok := block.(*agentwire.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	return sb.String()
}

func TestQuery_Arithmetic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var (
		answer string
		result *agentwire.ResultMessage
	)

	for msg, err := range agentwire.Query(ctx, "What is 6 times 7? Answer with just the number.",
		agentwire.WithMaxTurns(1),
	) {
		skipIfAgentNotInstalled(t, err)
		require.NoError(t, err)

		answer += assistantText(msg)

		if m, ok := msg.(*agentwire.ResultMessage); ok {
			result = m
		}
	}

	assert.Contains(t, answer, "42")
	require.NotNil(t, result)
	assert.False(t, result.IsError)
}

func TestSession_MultiTurn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	sess := agentwire.NewSession()

	err := sess.Connect(ctx, agentwire.WithMaxTurns(2))
	skipIfAgentNotInstalled(t, err)
	require.NoError(t, err)

	defer sess.Disconnect() //nolint:errcheck

	require.NoError(t, sess.Send(ctx, "Remember the word 'pineapple'. Reply OK."))

	for _, err := range sess.Messages(ctx) {
		require.NoError(t, err)
	}

	require.NoError(t, sess.Send(ctx, "What word did I ask you to remember?"))

	var answer string

	for msg, err := range sess.Messages(ctx) {
		require.NoError(t, err)
		answer += assistantText(msg)
	}

	assert.Contains(t, strings.ToLower(answer), "pineapple")
}

func TestQuery_InProcessTool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	called := false

	secret := agentwire.NewTool("secret_word", "Returns the secret word",
		agentwire.SimpleSchema(map[string]string{}),
		func(context.Context, *agentwire.CallToolRequest) (*agentwire.CallToolResult, error) {
			called = true

			return agentwire.TextResult("xylophone"), nil
		},
	)

	var answer string

	for msg, err := range agentwire.Query(ctx,
		"Call the secret_word tool and tell me the word it returns.",
		agentwire.WithTools(secret),
		agentwire.WithMaxTurns(3),
	) {
		skipIfAgentNotInstalled(t, err)
		require.NoError(t, err)

		answer += assistantText(msg)
	}

	assert.True(t, called, "tool handler should have been invoked")
	assert.Contains(t, strings.ToLower(answer), "xylophone")
}
