// Package generation defines the boundary between the planning core and the
// streaming text-generation backends (Gemini, OpenAI-compatible APIs).
//
// A Generator turns a prompt into a lazy, ordered sequence of text fragments.
// The Composer builds those prompts from task snapshots, and
// ResilientGenerator adds rate limiting and retries around any backend.
package generation
