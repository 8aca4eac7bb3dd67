package testutils

import (
	"context"
	"iter"
	"sync"
)

// MockGenerator is a scripted concierge.Generator. Generate answers with
// Text; GenerateStream yields Chunks and then StreamErr. Err fails both
// before any text is produced.
type MockGenerator struct {
	Text      string
	Chunks    []string
	Err       error
	StreamErr error

	mu      sync.Mutex
	prompts []string
}

// Prompts returns every prompt received, oldest first.
func (g *MockGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func (g *MockGenerator) record(prompt string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
}

func (g *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.record(prompt)
	return g.Text, g.Err
}

func (g *MockGenerator) GenerateStream(_ context.Context, prompt string) iter.Seq2[string, error] {
	g.record(prompt)
	return func(yield func(string, error) bool) {
		if g.Err != nil {
			yield("", g.Err)
			return
		}
		for _, c := range g.Chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.StreamErr != nil {
			yield("", g.StreamErr)
		}
	}
}
