package generation

import (
	"context"
	"iter"
)

// Generator produces text for a prompt as a stream of fragments.
//
// The returned sequence is lazy and meant for a single consumer: nothing is
// requested from the backend until iteration starts, and it cannot be
// restarted. Every fragment is a non-empty string; concatenating them in
// order gives the complete text. Fragments carry no alignment guarantees and
// may split words or markdown constructs. A non-nil error ends the sequence.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Collect drains a fragment stream and returns the concatenated text. On
// error, the text received so far is returned alongside it.
func Collect(stream iter.Seq2[string, error]) (string, error) {
	var text []byte
	for fragment, err := range stream {
		if err != nil {
			return string(text), err
		}
		text = append(text, fragment...)
	}
	return string(text), nil
}
