package message

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/agentwire/agentwire/internal/errors"
)

// envelope is the outer shape shared by every conversation message.
//
//nolint:tagliatelle // wire protocol uses snake_case
type envelope struct {
	Type            string          `json:"type"`
	Subtype         string          `json:"subtype"`
	UUID            *string         `json:"uuid"`
	SessionID       string          `json:"session_id"`
	ParentToolUseID *string         `json:"parent_tool_use_id"`
	Error           *string         `json:"error"`
	Message         json.RawMessage `json:"message"`
	Event           json.RawMessage `json:"event"`
}

// IsUnknownType reports whether err marks a message type this module does
// not model. Callers skip those instead of failing.
func IsUnknownType(err error) bool {
	return stderrors.Is(err, errors.ErrUnknownMessageType)
}

// Decode converts one raw conversation message to its typed form.
//
// The input is the decoded JSON object for a single stdout line that has
// already been classified as a conversation message (not control traffic).
func Decode(log *slog.Logger, raw []byte) (Message, error) {
	log = log.With("component", "message_decoder")

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &errors.MessageParseError{
			Message: "malformed message envelope",
			Err:     err,
			Raw:     raw,
		}
	}

	if env.Type == "" {
		err := fmt.Errorf("missing or invalid 'type' field")

		log.Debug("Message missing 'type' field")

		return nil, &errors.MessageParseError{Message: err.Error(), Err: err, Raw: raw}
	}

	log.Debug("Decoding message", "message_type", env.Type)

	var (
		msg Message
		err error
	)

	switch env.Type {
	case "user":
		msg, err = decodeUserMessage(&env)
	case "assistant":
		msg, err = decodeAssistantMessage(&env)
	case "system":
		msg, err = decodeSystemMessage(&env, raw)
	case "result":
		msg, err = decodeResultMessage(&env, raw)
	case "stream_event":
		msg, err = decodeStreamEvent(&env)
	default:
		log.Debug("Skipping unknown message type", "message_type", env.Type)

		return nil, errors.ErrUnknownMessageType
	}

	if err != nil {
		return nil, &errors.MessageParseError{Message: err.Error(), Err: err, Raw: raw}
	}

	return msg, nil
}

// decodeUserMessage flattens the nested "message" body into a UserMessage.
// uuid and parent_tool_use_id live on the envelope, not the body.
func decodeUserMessage(env *envelope) (*UserMessage, error) {
	if len(env.Message) == 0 {
		return nil, fmt.Errorf("user message: missing 'message' field")
	}

	var body struct {
		Content json.RawMessage `json:"content"`
	}

	if err := json.Unmarshal(env.Message, &body); err != nil {
		return nil, fmt.Errorf("user message: %w", err)
	}

	if len(body.Content) == 0 {
		return nil, fmt.Errorf("user message: missing content field")
	}

	var content UserContent
	if err := json.Unmarshal(body.Content, &content); err != nil {
		return nil, fmt.Errorf("user message: %w", err)
	}

	return &UserMessage{
		Type:            "user",
		Content:         content,
		UUID:            env.UUID,
		ParentToolUseID: env.ParentToolUseID,
	}, nil
}

func decodeAssistantMessage(env *envelope) (*AssistantMessage, error) {
	if len(env.Message) == 0 {
		return nil, fmt.Errorf("assistant message: missing 'message' field")
	}

	var body struct {
		Content []json.RawMessage `json:"content"`
		Model   string            `json:"model"`
	}

	if err := json.Unmarshal(env.Message, &body); err != nil {
		return nil, fmt.Errorf("assistant message: %w", err)
	}

	blocks := make([]ContentBlock, 0, len(body.Content))

	for i, rb := range body.Content {
		block, err := DecodeBlock(rb)
		if err != nil {
			return nil, fmt.Errorf("assistant content block %d: %w", i, err)
		}

		blocks = append(blocks, block)
	}

	msg := &AssistantMessage{
		Type:            "assistant",
		Content:         blocks,
		Model:           body.Model,
		ParentToolUseID: env.ParentToolUseID,
	}

	// The agent process reports upstream API errors on the envelope.
	if env.Error != nil {
		errType := AssistantError(*env.Error)
		msg.Error = &errType
	}

	return msg, nil
}

// decodeSystemMessage keeps every non-standard field in Data. Init messages
// carry their payload (tools, commands, model) at the top level.
func decodeSystemMessage(env *envelope, raw []byte) (*SystemMessage, error) {
	if env.Subtype == "" {
		return nil, fmt.Errorf("system message: missing or invalid 'subtype' field")
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("system message: %w", err)
	}

	msg := &SystemMessage{Type: "system", Subtype: env.Subtype}

	if nested, ok := fields["data"].(map[string]any); ok {
		msg.Data = nested

		return msg, nil
	}

	delete(fields, "type")
	delete(fields, "subtype")
	msg.Data = fields

	return msg, nil
}

func decodeResultMessage(env *envelope, raw []byte) (*ResultMessage, error) {
	if env.Subtype == "" {
		return nil, fmt.Errorf("result message: missing or invalid 'subtype' field")
	}

	var msg ResultMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("result message: %w", err)
	}

	return &msg, nil
}

func decodeStreamEvent(env *envelope) (*StreamEvent, error) {
	if env.UUID == nil || *env.UUID == "" {
		return nil, fmt.Errorf("stream_event: missing or invalid 'uuid' field")
	}

	if env.SessionID == "" {
		return nil, fmt.Errorf("stream_event: missing or invalid 'session_id' field")
	}

	if len(env.Event) == 0 {
		return nil, fmt.Errorf("stream_event: missing or invalid 'event' field")
	}

	var event map[string]any
	if err := json.Unmarshal(env.Event, &event); err != nil {
		return nil, fmt.Errorf("stream_event: %w", err)
	}

	return &StreamEvent{
		UUID:            *env.UUID,
		SessionID:       env.SessionID,
		Event:           event,
		ParentToolUseID: env.ParentToolUseID,
	}, nil
}
