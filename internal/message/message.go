package message

import "encoding/json"

// Message is any message in the conversation stream. Use a type switch to
// determine the concrete type.
type Message interface {
	MessageType() string
}

// Compile-time verification that all message types implement Message.
var (
	_ Message = (*UserMessage)(nil)
	_ Message = (*AssistantMessage)(nil)
	_ Message = (*SystemMessage)(nil)
	_ Message = (*ResultMessage)(nil)
	_ Message = (*StreamEvent)(nil)
)

// UserContent is message content that may be either a plain string or a
// list of content blocks on the wire.
type UserContent struct {
	text   *string
	blocks []ContentBlock
}

// TextContent creates UserContent from a string.
func TextContent(text string) UserContent {
	return UserContent{text: &text}
}

// BlockContent creates UserContent from content blocks.
func BlockContent(blocks []ContentBlock) UserContent {
	return UserContent{blocks: blocks}
}

// Text returns the string content, or "" if the content is block-shaped.
func (c *UserContent) Text() string {
	if c.text != nil {
		return *c.text
	}

	return ""
}

// Blocks returns the content as blocks, normalizing a string to one TextBlock.
func (c *UserContent) Blocks() []ContentBlock {
	if c.blocks != nil {
		return c.blocks
	}

	if c.text != nil {
		return []ContentBlock{&TextBlock{Type: BlockTypeText, Text: *c.text}}
	}

	return nil
}

// IsText reports whether the content arrived as a plain string.
func (c *UserContent) IsText() bool { return c.text != nil }

// MarshalJSON emits the original wire shape: string or block array.
func (c UserContent) MarshalJSON() ([]byte, error) {
	if c.text != nil {
		return json.Marshal(*c.text)
	}

	return json.Marshal(c.blocks)
}

// UnmarshalJSON accepts both a string and an array of content blocks.
func (c *UserContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.text = &text
		c.blocks = nil

		return nil
	}

	blocks, err := decodeBlockList(data)
	if err != nil {
		return err
	}

	c.blocks = blocks
	c.text = nil

	return nil
}

// UserMessage is a message from the user, including tool results echoed
// back into the conversation.
//
//nolint:tagliatelle // wire protocol uses snake_case
type UserMessage struct {
	Type            string         `json:"type"`
	Content         UserContent    `json:"content"`
	UUID            *string        `json:"uuid,omitempty"`
	ParentToolUseID *string        `json:"parent_tool_use_id,omitempty"`
	ToolUseResult   map[string]any `json:"tool_use_result,omitempty"`
}

// MessageType implements Message.
func (m *UserMessage) MessageType() string { return "user" }

// AssistantMessage is a message from the model.
//
//nolint:tagliatelle // wire protocol uses snake_case
type AssistantMessage struct {
	Type            string          `json:"type"`
	Content         []ContentBlock  `json:"content"`
	Model           string          `json:"model"`
	ParentToolUseID *string         `json:"parent_tool_use_id,omitempty"`
	Error           *AssistantError `json:"error,omitempty"`
}

// MessageType implements Message.
func (m *AssistantMessage) MessageType() string { return "assistant" }

// AssistantError classifies upstream failures reported on assistant turns.
type AssistantError string

const (
	// AssistantErrorAuthFailed indicates authentication failed upstream.
	AssistantErrorAuthFailed AssistantError = "authentication_failed"
	// AssistantErrorBilling indicates a billing problem.
	AssistantErrorBilling AssistantError = "billing_error"
	// AssistantErrorRateLimit indicates rate limiting.
	AssistantErrorRateLimit AssistantError = "rate_limit"
	// AssistantErrorInvalidReq indicates a rejected request.
	AssistantErrorInvalidReq AssistantError = "invalid_request"
	// AssistantErrorServer indicates an upstream server error.
	AssistantErrorServer AssistantError = "server_error"
	// AssistantErrorUnknown is any unclassified failure.
	AssistantErrorUnknown AssistantError = "unknown"
)

// SystemMessage is an informational message from the agent process, such as
// the init message describing the session.
type SystemMessage struct {
	Type    string         `json:"type"`
	Subtype string         `json:"subtype,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// MessageType implements Message.
func (m *SystemMessage) MessageType() string { return "system" }

// ResultMessage is the terminal message of a turn, carrying timing, cost
// and the final result text.
//
//nolint:tagliatelle // wire protocol uses snake_case
type ResultMessage struct {
	Type             string   `json:"type"`
	Subtype          string   `json:"subtype"`
	DurationMs       int      `json:"duration_ms"`
	DurationAPIMs    int      `json:"duration_api_ms"`
	IsError          bool     `json:"is_error"`
	NumTurns         int      `json:"num_turns"`
	SessionID        string   `json:"session_id"`
	TotalCostUSD     *float64 `json:"total_cost_usd,omitempty"`
	Usage            *Usage   `json:"usage,omitempty"`
	Result           *string  `json:"result,omitempty"`
	StructuredOutput any      `json:"structured_output,omitempty"`
}

// MessageType implements Message.
func (m *ResultMessage) MessageType() string { return "result" }

// StreamEvent is a raw incremental API event forwarded when partial
// message streaming is enabled.
//
//nolint:tagliatelle // wire protocol uses snake_case
type StreamEvent struct {
	UUID            string         `json:"uuid"`
	SessionID       string         `json:"session_id"`
	Event           map[string]any `json:"event"`
	ParentToolUseID *string        `json:"parent_tool_use_id,omitempty"`
}

// MessageType implements Message.
func (m *StreamEvent) MessageType() string { return "stream_event" }

// Usage is token accounting for a turn.
//
//nolint:tagliatelle // wire protocol uses snake_case
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TurnBody is the role/content pair inside an outbound user turn.
type TurnBody struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Turn is a user turn written to the agent's stdin in streaming mode.
//
//nolint:tagliatelle // wire protocol uses snake_case
type Turn struct {
	Type            string   `json:"type"`
	Message         TurnBody `json:"message"`
	ParentToolUseID *string  `json:"parent_tool_use_id"`
	SessionID       string   `json:"session_id,omitempty"`
}

// NewTurn builds an outbound user turn with plain text content.
func NewTurn(text, sessionID string) *Turn {
	return &Turn{
		Type:      "user",
		Message:   TurnBody{Role: "user", Content: text},
		SessionID: sessionID,
	}
}
