// Package openai implements generation.Generator against any
// OpenAI-compatible /chat/completions endpoint with streaming enabled.
//
// The response is read as Server-Sent Events: each data line carries a JSON
// chunk whose first choice delta holds the next fragment, and the literal
// [DONE] ends the stream.
package openai
