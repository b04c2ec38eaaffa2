package message

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/internal/errors"
)

func decode(t *testing.T, raw string) (Message, error) {
	t.Helper()

	return Decode(slog.New(slog.DiscardHandler), []byte(raw))
}

func TestDecode_UserMessage_StringContent(t *testing.T) {
	msg, err := decode(t, `{
		"type": "user",
		"uuid": "u-1",
		"session_id": "s-1",
		"message": {"role": "user", "content": "hello there"}
	}`)
	require.NoError(t, err)

	user, ok := msg.(*UserMessage)
	require.True(t, ok)

	assert.True(t, user.Content.IsText())
	assert.Equal(t, "hello there", user.Content.Text())
	require.NotNil(t, user.UUID)
	assert.Equal(t, "u-1", *user.UUID)

	blocks := user.Content.Blocks()
	require.Len(t, blocks, 1)
	text, ok := blocks[0].(*TextBlock)
	require.True(t, ok)
	assert.Equal(t, "hello there", text.Text)
}

func TestDecode_UserMessage_BlockContent(t *testing.T) {
	msg, err := decode(t, `{
		"type": "user",
		"parent_tool_use_id": "toolu_1",
		"message": {"role": "user", "content": [
			{"type": "tool_result", "tool_use_id": "toolu_1", "content": "done"}
		]}
	}`)
	require.NoError(t, err)

	user := msg.(*UserMessage)
	assert.False(t, user.Content.IsText())
	assert.Empty(t, user.Content.Text())
	require.NotNil(t, user.ParentToolUseID)
	assert.Equal(t, "toolu_1", *user.ParentToolUseID)

	blocks := user.Content.Blocks()
	require.Len(t, blocks, 1)

	result, ok := blocks[0].(*ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, "toolu_1", result.ToolUseID)
}

func TestDecode_UserMessage_MissingBody(t *testing.T) {
	_, err := decode(t, `{"type": "user"}`)

	var parseErr *errors.MessageParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Message, "missing 'message' field")
}

func TestDecode_AssistantMessage(t *testing.T) {
	msg, err := decode(t, `{
		"type": "assistant",
		"message": {
			"model": "sonnet",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "thinking", "thinking": "hmm", "signature": "sig"},
				{"type": "tool_use", "id": "toolu_9", "name": "Bash", "input": {"command": "ls"}}
			]
		}
	}`)
	require.NoError(t, err)

	assistant, ok := msg.(*AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "sonnet", assistant.Model)
	assert.Nil(t, assistant.Error)
	require.Len(t, assistant.Content, 3)

	assert.Equal(t, "Let me check.", assistant.Content[0].(*TextBlock).Text)
	assert.Equal(t, "hmm", assistant.Content[1].(*ThinkingBlock).Thinking)

	toolUse := assistant.Content[2].(*ToolUseBlock)
	assert.Equal(t, "Bash", toolUse.Name)
	assert.Equal(t, "ls", toolUse.Input["command"])
}

func TestDecode_AssistantMessage_EnvelopeError(t *testing.T) {
	msg, err := decode(t, `{
		"type": "assistant",
		"error": "rate_limit",
		"message": {"model": "sonnet", "content": []}
	}`)
	require.NoError(t, err)

	assistant := msg.(*AssistantMessage)
	require.NotNil(t, assistant.Error)
	assert.Equal(t, AssistantErrorRateLimit, *assistant.Error)
}

func TestDecode_AssistantMessage_UnknownBlockFallsBackToText(t *testing.T) {
	msg, err := decode(t, `{
		"type": "assistant",
		"message": {"model": "m", "content": [{"type": "server_tool_use", "text": "x"}]}
	}`)
	require.NoError(t, err)

	assistant := msg.(*AssistantMessage)
	require.Len(t, assistant.Content, 1)
	_, ok := assistant.Content[0].(*TextBlock)
	assert.True(t, ok)
}

func TestDecode_SystemMessage_TopLevelFieldsBecomeData(t *testing.T) {
	msg, err := decode(t, `{
		"type": "system",
		"subtype": "init",
		"session_id": "s-1",
		"model": "sonnet",
		"tools": ["Bash", "Edit"]
	}`)
	require.NoError(t, err)

	system, ok := msg.(*SystemMessage)
	require.True(t, ok)
	assert.Equal(t, "init", system.Subtype)
	assert.Equal(t, "sonnet", system.Data["model"])
	assert.Equal(t, []any{"Bash", "Edit"}, system.Data["tools"])
	assert.NotContains(t, system.Data, "type")
	assert.NotContains(t, system.Data, "subtype")
}

func TestDecode_SystemMessage_NestedData(t *testing.T) {
	msg, err := decode(t, `{
		"type": "system",
		"subtype": "status",
		"data": {"status": "compacting"}
	}`)
	require.NoError(t, err)

	system := msg.(*SystemMessage)
	assert.Equal(t, map[string]any{"status": "compacting"}, system.Data)
}

func TestDecode_SystemMessage_MissingSubtype(t *testing.T) {
	_, err := decode(t, `{"type": "system"}`)

	var parseErr *errors.MessageParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Message, "subtype")
}

func TestDecode_ResultMessage(t *testing.T) {
	msg, err := decode(t, `{
		"type": "result",
		"subtype": "success",
		"duration_ms": 1200,
		"duration_api_ms": 900,
		"is_error": false,
		"num_turns": 2,
		"session_id": "s-1",
		"total_cost_usd": 0.0042,
		"usage": {"input_tokens": 10, "output_tokens": 20},
		"result": "All done."
	}`)
	require.NoError(t, err)

	result, ok := msg.(*ResultMessage)
	require.True(t, ok)
	assert.Equal(t, "success", result.Subtype)
	assert.Equal(t, 1200, result.DurationMs)
	assert.Equal(t, 900, result.DurationAPIMs)
	assert.False(t, result.IsError)
	assert.Equal(t, 2, result.NumTurns)
	assert.Equal(t, "s-1", result.SessionID)
	require.NotNil(t, result.TotalCostUSD)
	assert.InDelta(t, 0.0042, *result.TotalCostUSD, 1e-9)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 20, result.Usage.OutputTokens)
	require.NotNil(t, result.Result)
	assert.Equal(t, "All done.", *result.Result)
}

func TestDecode_ResultMessage_OptionalFieldsAbsent(t *testing.T) {
	msg, err := decode(t, `{"type": "result", "subtype": "error_during_execution", "is_error": true, "session_id": "s"}`)
	require.NoError(t, err)

	result := msg.(*ResultMessage)
	assert.True(t, result.IsError)
	assert.Nil(t, result.TotalCostUSD)
	assert.Nil(t, result.Usage)
	assert.Nil(t, result.Result)
}

func TestDecode_StreamEvent(t *testing.T) {
	msg, err := decode(t, `{
		"type": "stream_event",
		"uuid": "ev-1",
		"session_id": "s-1",
		"event": {"type": "content_block_delta", "delta": {"text": "par"}}
	}`)
	require.NoError(t, err)

	event, ok := msg.(*StreamEvent)
	require.True(t, ok)
	assert.Equal(t, "ev-1", event.UUID)
	assert.Equal(t, "s-1", event.SessionID)
	assert.Equal(t, "content_block_delta", event.Event["type"])
}

func TestDecode_StreamEvent_Validation(t *testing.T) {
	cases := map[string]string{
		"missing uuid":    `{"type": "stream_event", "session_id": "s", "event": {}}`,
		"missing session": `{"type": "stream_event", "uuid": "e", "event": {}}`,
		"missing event":   `{"type": "stream_event", "uuid": "e", "session_id": "s"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, raw)

			var parseErr *errors.MessageParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := decode(t, `{"type": "control_telemetry"}`)
	assert.True(t, IsUnknownType(err))
}

func TestDecode_MissingType(t *testing.T) {
	_, err := decode(t, `{"subtype": "init"}`)

	var parseErr *errors.MessageParseError
	require.ErrorAs(t, err, &parseErr)
	assert.False(t, IsUnknownType(err))
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := decode(t, `{"type": "user", `)

	var parseErr *errors.MessageParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "malformed message envelope", parseErr.Message)
}

func TestToolResultBlock_StringOrBlockContent(t *testing.T) {
	var asString ToolResultBlock
	require.NoError(t, asString.UnmarshalJSON([]byte(
		`{"type": "tool_result", "tool_use_id": "t1", "content": "plain output", "is_error": true}`,
	)))
	assert.True(t, asString.IsError)
	require.Len(t, asString.Content, 1)
	assert.Equal(t, "plain output", asString.Content[0].(*TextBlock).Text)

	var asBlocks ToolResultBlock
	require.NoError(t, asBlocks.UnmarshalJSON([]byte(
		`{"type": "tool_result", "tool_use_id": "t2", "content": [{"type": "text", "text": "a"}, {"type": "text", "text": "b"}]}`,
	)))
	require.Len(t, asBlocks.Content, 2)
	assert.Equal(t, "b", asBlocks.Content[1].(*TextBlock).Text)

	var empty ToolResultBlock
	require.NoError(t, empty.UnmarshalJSON([]byte(`{"type": "tool_result", "tool_use_id": "t3"}`)))
	assert.Nil(t, empty.Content)
}

func TestNewTurn(t *testing.T) {
	turn := NewTurn("run the tests", "s-1")

	assert.Equal(t, "user", turn.Type)
	assert.Equal(t, "user", turn.Message.Role)
	assert.Equal(t, "run the tests", turn.Message.Content)
	assert.Equal(t, "s-1", turn.SessionID)
}
