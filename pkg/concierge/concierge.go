// Package concierge answers chat prompts for the relay's /api/genai route.
package concierge

import (
	"context"
	"iter"
	"strings"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-3-flash-preview"

const (
	personaSuffix      = "\n\nRespond concisely within THE J'S GLAMOUR persona."
	defaultInstruction = "You are the Master AI Concierge for THE J'S GLAMOUR. Provide concise, technical advice."
)

// Role names accepted in a HistoryMessage.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// HistoryMessage is one prior turn of a concierge conversation.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request is the body accepted by the concierge route.
type Request struct {
	History        []HistoryMessage `json:"history,omitempty"`
	PromptOverride string           `json:"promptOverride,omitempty"`
	Stream         bool             `json:"stream,omitempty"`
}

// Prompt renders the text sent to the model. A prompt override wins, then
// the history transcript; with neither the default instruction is used.
func (r Request) Prompt() string {
	if r.PromptOverride != "" {
		return r.PromptOverride
	}

	if r.History == nil {
		return defaultInstruction
	}

	lines := make([]string, 0, len(r.History))
	for _, m := range r.History {
		speaker := "System"
		if m.Role == RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Text)
	}
	return strings.Join(lines, "\n") + personaSuffix
}

// Generator produces concierge answers.
type Generator interface {
	// Generate returns the complete answer for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream yields the answer as text deltas. Iteration stops at the
	// first error.
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}
