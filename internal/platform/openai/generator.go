package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/phrazzld/dayplan-api/internal/generation"
)

// Defaults used when the configuration leaves them empty.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
)

var errEventTooLarge = errors.New("SSE event exceeds maximum size")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// streamChunk is one streamed completion chunk.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generator implements the generation.Generator interface for
// OpenAI-compatible chat completion APIs.
type Generator struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Generator. A nil httpClient uses a client without
// a timeout; streams are bounded by the caller's context instead.
func NewGenerator(cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	baseURL := strings.TrimRight(cfg.OpenAIBaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.ModelName
	if model == "" {
		model = DefaultModel
	}

	return &Generator{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     cfg.OpenAIAPIKey,
		model:      model,
		logger:     logger.With("component", "openai_generator", "model", model),
	}, nil
}

// GenerateStream implements generation.Generator.
func (g *Generator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if prompt == "" {
			yield("", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidConfig))
			return
		}

		body, err := g.openStream(ctx, prompt)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = body.Close() }()

		reader := newSSEReader(body)
		for {
			data, err := reader.ReadEvent()
			if err != nil {
				if err == io.EOF {
					// The stream closed without [DONE]: the response was cut off.
					yield("", fmt.Errorf("%w: stream ended before completion", generation.ErrTransientFailure))
					return
				}
				yield("", g.mapReadError(ctx, err))
				return
			}

			if bytes.Equal(data, []byte("[DONE]")) {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				yield("", fmt.Errorf("%w: malformed stream chunk: %v", generation.ErrInvalidResponse, err))
				return
			}
			if chunk.Error != nil {
				yield("", fmt.Errorf("%w: %s", generation.ErrGenerationFailed, chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
			if choice.FinishReason != nil && *choice.FinishReason == "content_filter" {
				yield("", fmt.Errorf("%w: finish reason content_filter", generation.ErrContentBlocked))
				return
			}
		}
	}
}

func (g *Generator) openStream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", generation.ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", generation.ErrInvalidConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, g.mapReadError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.logger.WarnContext(ctx, "chat completion request rejected",
			"status", resp.StatusCode,
			"body_length", len(body))
		return nil, statusError(resp.StatusCode)
	}

	return resp.Body, nil
}

func (g *Generator) mapReadError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, errEventTooLarge) {
		return fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	g.logger.ErrorContext(ctx, "chat completion stream failed", "error", err)
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}

// statusError maps a non-200 status to a generation error.
func statusError(status int) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d", generation.ErrTransientFailure, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", generation.ErrInvalidConfig, status)
	default:
		return fmt.Errorf("%w: status %d", generation.ErrGenerationFailed, status)
	}
}
