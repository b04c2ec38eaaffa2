// Package message provides the typed conversation messages and content
// blocks exchanged with the agent process.
package message

import "encoding/json"

// Content block type discriminators.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock is one block of content within a message.
type ContentBlock interface {
	BlockType() string
}

// Compile-time verification that all content block types implement ContentBlock.
var (
	_ ContentBlock = (*TextBlock)(nil)
	_ ContentBlock = (*ThinkingBlock)(nil)
	_ ContentBlock = (*ToolUseBlock)(nil)
	_ ContentBlock = (*ToolResultBlock)(nil)
)

// TextBlock is plain text content.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BlockType implements ContentBlock.
func (b *TextBlock) BlockType() string { return BlockTypeText }

// ThinkingBlock is the model's internal reasoning.
type ThinkingBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking"`
	Signature string `json:"signature"`
}

// BlockType implements ContentBlock.
func (b *ThinkingBlock) BlockType() string { return BlockTypeThinking }

// ToolUseBlock is a tool invocation requested by the model.
type ToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// BlockType implements ContentBlock.
func (b *ToolUseBlock) BlockType() string { return BlockTypeToolUse }

// ToolResultBlock is the outcome of a tool invocation.
//
//nolint:tagliatelle // wire protocol uses snake_case
type ToolResultBlock struct {
	Type      string         `json:"type"`
	ToolUseID string         `json:"tool_use_id"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// BlockType implements ContentBlock.
func (b *ToolResultBlock) BlockType() string { return BlockTypeToolResult }

// UnmarshalJSON accepts both string content and an array of blocks, the two
// shapes the agent process emits for tool results.
func (b *ToolResultBlock) UnmarshalJSON(data []byte) error {
	type plain ToolResultBlock

	aux := &struct {
		Content json.RawMessage `json:"content,omitempty"`
		*plain
	}{plain: (*plain)(b)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Content) == 0 || string(aux.Content) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(aux.Content, &text); err == nil {
		b.Content = []ContentBlock{&TextBlock{Type: BlockTypeText, Text: text}}

		return nil
	}

	blocks, err := decodeBlockList(aux.Content)
	if err != nil {
		return err
	}

	b.Content = blocks

	return nil
}

// DecodeBlock converts one raw JSON content block to its typed form.
// Unknown block types decode as TextBlock so new agent versions do not
// break older callers.
func DecodeBlock(raw json.RawMessage) (ContentBlock, error) {
	var head struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	var block ContentBlock

	switch head.Type {
	case BlockTypeThinking:
		block = &ThinkingBlock{}
	case BlockTypeToolUse:
		block = &ToolUseBlock{}
	case BlockTypeToolResult:
		block = &ToolResultBlock{}
	default:
		block = &TextBlock{}
	}

	if err := json.Unmarshal(raw, block); err != nil {
		return nil, err
	}

	return block, nil
}

func decodeBlockList(raw json.RawMessage) ([]ContentBlock, error) {
	var rawBlocks []json.RawMessage
	if err := json.Unmarshal(raw, &rawBlocks); err != nil {
		return nil, err
	}

	blocks := make([]ContentBlock, 0, len(rawBlocks))

	for _, rb := range rawBlocks {
		block, err := DecodeBlock(rb)
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, block)
	}

	return blocks, nil
}
