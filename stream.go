package agentwire

import (
	"iter"

	"github.com/agentwire/agentwire/internal/message"
)

// NewTurn creates a user turn addressed to the given conversation.
func NewTurn(text, sessionID string) *Turn {
	return message.NewTurn(text, sessionID)
}

// TurnsFromSlice creates a TurnStream from a fixed set of turns.
func TurnsFromSlice(turns []*Turn) iter.Seq[*Turn] {
	return func(yield func(*Turn) bool) {
		for _, turn := range turns {
			if !yield(turn) {
				return
			}
		}
	}
}

// TurnsFromChannel creates a TurnStream from a channel. This suits
// dynamic input where turns are produced over time; the stream completes
// when the channel is closed.
func TurnsFromChannel(ch <-chan *Turn) iter.Seq[*Turn] {
	return func(yield func(*Turn) bool) {
		for turn := range ch {
			if !yield(turn) {
				return
			}
		}
	}
}

// SingleTurn creates a TurnStream carrying one user turn.
func SingleTurn(text, sessionID string) iter.Seq[*Turn] {
	return TurnsFromSlice([]*Turn{NewTurn(text, sessionID)})
}
