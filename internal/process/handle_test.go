package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/internal/errors"
)

func discardLog() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// shellHandle spawns `sh -c script` through a Handle.
func shellHandle(t *testing.T, script string, cfg HandleConfig) *Handle {
	t.Helper()

	h := New(discardLog(), Command{Path: "/bin/sh", Args: []string{"-c", script}}, cfg)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Close() })

	return h
}

func collectLines(t *testing.T, lines <-chan []byte, errs <-chan error) ([]string, error) {
	t.Helper()

	var (
		out     []string
		readErr error
	)

	timeout := time.After(5 * time.Second)

	for lines != nil || errs != nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}

			out = append(out, string(line))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			if readErr == nil {
				readErr = err
			}
		case <-timeout:
			if readErr == nil {
				readErr = fmt.Errorf("timed out draining process output")
			}

			return out, readErr
		}
	}

	return out, readErr
}

func TestReadMessages_DeliversLinesInOrder(t *testing.T) {
	h := shellHandle(t, `printf 'one\ntwo\nthree\n'`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())

	got, err := collectLines(t, lines, errs)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)

	status, ok := h.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, 0, status.Code)
	assert.NoError(t, status.Err)
}

func TestSendMessage_EchoRoundTrip(t *testing.T) {
	h := shellHandle(t, `cat`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())

	require.NoError(t, h.SendMessage(context.Background(), []byte(`{"type":"user"}`)))
	// Already-framed messages get no second newline.
	require.NoError(t, h.SendMessage(context.Background(), []byte("plain\n")))
	require.NoError(t, h.EndInput())

	got, err := collectLines(t, lines, errs)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"type":"user"}`, "plain"}, got)
}

func TestWaitReady_FirstLineSignals(t *testing.T) {
	h := shellHandle(t, `echo ready; sleep 10`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())
	go collectLines(t, lines, errs) //nolint:errcheck

	require.NoError(t, h.WaitReady(context.Background(), 5*time.Second))
}

func TestWaitReady_TimesOutWithoutOutput(t *testing.T) {
	h := shellHandle(t, `sleep 10`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())
	go collectLines(t, lines, errs) //nolint:errcheck

	err := h.WaitReady(context.Background(), 50*time.Millisecond)
	require.ErrorIs(t, err, errors.ErrNotReady)
}

func TestReadMessages_CrashReportsExitError(t *testing.T) {
	h := shellHandle(t, `echo hello; echo 'boom: broken pipe' >&2; exit 3`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())

	got, err := collectLines(t, lines, errs)
	assert.Equal(t, []string{"hello"}, got)

	var exitErr *errors.ProcessExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Contains(t, exitErr.Stderr, "boom: broken pipe")

	status, ok := h.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, 3, status.Code)
}

func TestStderrCallback_ReceivesEveryLine(t *testing.T) {
	var (
		mu       sync.Mutex
		captured []string
	)

	h := shellHandle(t, `echo first >&2; echo second >&2`, HandleConfig{
		Stderr: func(line string) {
			mu.Lock()
			captured = append(captured, line)
			mu.Unlock()
		},
	})

	lines, errs := h.ReadMessages(context.Background())
	_, err := collectLines(t, lines, errs)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, captured)
}

func TestReadMessages_OverlongLineFailsScan(t *testing.T) {
	h := shellHandle(t, `head -c 4096 /dev/zero | tr '\0' 'x'; echo`, HandleConfig{MaxBufferSize: 256})

	lines, errs := h.ReadMessages(context.Background())

	got, err := collectLines(t, lines, errs)
	assert.Empty(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanner error")
}

func TestTerminate_GracefulExitWithinGrace(t *testing.T) {
	h := shellHandle(t, `cat`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())

	start := time.Now()
	require.NoError(t, h.Terminate(5*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second, "cat exits on stdin close, no kill needed")

	_, err := collectLines(t, lines, errs)
	assert.NoError(t, err, "intentional shutdown must not surface an exit error")
}

func TestTerminate_KillsAfterGrace(t *testing.T) {
	h := shellHandle(t, `trap '' TERM; sleep 30`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())

	require.NoError(t, h.Terminate(100*time.Millisecond))

	_, err := collectLines(t, lines, errs)
	assert.NoError(t, err, "kill during terminate is intentional")

	select {
	case <-h.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped after kill")
	}
}

func TestTerminate_WithoutReaderStillReaps(t *testing.T) {
	h := shellHandle(t, `sleep 30`, HandleConfig{})

	require.NoError(t, h.Terminate(50*time.Millisecond))

	select {
	case <-h.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("exit record was never set")
	}

	_, ok := h.ExitStatus()
	assert.True(t, ok)
}

func TestStart_SpawnErrorOnMissingBinary(t *testing.T) {
	h := New(discardLog(), Command{Path: "/nonexistent/agent-binary"}, HandleConfig{})

	err := h.Start(context.Background())

	var spawnErr *errors.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "/nonexistent/agent-binary", spawnErr.Path)
}

func TestIsReady_LifecycleFlags(t *testing.T) {
	h := shellHandle(t, `cat`, HandleConfig{})

	assert.True(t, h.IsReady())

	require.NoError(t, h.EndInput())
	assert.False(t, h.IsReady(), "closed stdin means no longer writable")

	// EndInput is idempotent.
	require.NoError(t, h.EndInput())
}

func TestSendMessage_AfterEndInputFails(t *testing.T) {
	h := shellHandle(t, `cat`, HandleConfig{})

	lines, errs := h.ReadMessages(context.Background())
	go collectLines(t, lines, errs) //nolint:errcheck

	require.NoError(t, h.EndInput())

	err := h.SendMessage(context.Background(), []byte("late"))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

func TestCleanStderr_StripsSourceContext(t *testing.T) {
	input := strings.Join([]string{
		"error: something failed",
		"  1234 | const x = require('fs')",
		"  1235 | x.readFileSync(path)",
		"    at main (file.js:10)",
	}, "\n")

	cleaned := cleanStderr(input)

	assert.Contains(t, cleaned, "error: something failed")
	assert.Contains(t, cleaned, "at main")
	assert.NotContains(t, cleaned, "const x")
	assert.NotContains(t, cleaned, "readFileSync")
}

func TestCleanStderr_Empty(t *testing.T) {
	assert.Empty(t, cleanStderr(""))
	assert.Empty(t, cleanStderr("\n\n"))
}
