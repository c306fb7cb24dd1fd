// Package gemini implements generation.Generator with Google's Gemini API.
//
// GeminiGenerator opens a streaming GenerateContent call through the
// google.golang.org/genai client and yields the text of each streamed chunk
// as a fragment. Safety blocks map to generation.ErrContentBlocked, malformed
// chunks to generation.ErrInvalidResponse, and transport failures to
// generation.ErrTransientFailure so that callers can decide what to retry.
package gemini
