package mocks

import (
	"context"
	"iter"
	"sync"
	"time"
)

// StreamStep is one element of a scripted stream: a fragment, or a terminal error.
type StreamStep struct {
	Fragment string
	Err      error
}

// MockGenerator implements generation.Generator by replaying scripted streams
type MockGenerator struct {
	// GenerateStreamFn overrides the scripted streams when set
	GenerateStreamFn func(ctx context.Context, prompt string) iter.Seq2[string, error]

	// Streams are consumed one per call; the last one is repeated
	Streams [][]StreamStep

	// Delay is slept before each step; it is interrupted by ctx
	Delay time.Duration

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator returns a generator whose every stream yields fragments
func NewMockGenerator(fragments ...string) *MockGenerator {
	steps := make([]StreamStep, len(fragments))
	for i, f := range fragments {
		steps[i] = StreamStep{Fragment: f}
	}
	return &MockGenerator{Streams: [][]StreamStep{steps}}
}

// GenerateStream implements the generation.Generator interface
func (m *MockGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	m.mu.Lock()
	call := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateStreamFn != nil {
		return m.GenerateStreamFn(ctx, prompt)
	}

	var steps []StreamStep
	if n := len(m.Streams); n > 0 {
		steps = m.Streams[min(call, n-1)]
	}

	return func(yield func(string, error) bool) {
		for _, step := range steps {
			if m.Delay > 0 {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(m.Delay):
				}
			}
			if step.Err != nil {
				yield("", step.Err)
				return
			}
			if !yield(step.Fragment, nil) {
				return
			}
		}
	}
}

// Calls returns how many streams were requested
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns every prompt received, in call order
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
