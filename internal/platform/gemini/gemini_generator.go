package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/phrazzld/dayplan-api/internal/generation"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// errNoCandidates marks a chunk without candidates. After the first chunk
// such chunks carry only metadata and are skipped.
var errNoCandidates = fmt.Errorf("%w: no candidates in response chunk", generation.ErrInvalidResponse)

// contentStreamer is the part of the genai client the generator uses.
// *genai.Models satisfies it.
type contentStreamer interface {
	GenerateContentStream(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	logger *slog.Logger
	models contentStreamer
	model  string
}

var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator backed by a new genai client.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, cfg.ModelName), nil
}

func newGenerator(logger *slog.Logger, models contentStreamer, model string) *GeminiGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{
		logger: logger.With("component", "gemini_generator", "model", model),
		models: models,
		model:  model,
	}
}

// GenerateStream implements generation.Generator.
func (g *GeminiGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if prompt == "" {
			yield("", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidConfig))
			return
		}

		contents := []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		}}

		g.logger.DebugContext(ctx, "opening Gemini stream", "prompt_length", len(prompt))

		chunks := 0
		for resp, err := range g.models.GenerateContentStream(ctx, g.model, contents, nil) {
			if err != nil {
				yield("", g.mapError(ctx, err, chunks))
				return
			}

			text, err := chunkText(resp)
			if errors.Is(err, errNoCandidates) && chunks > 0 {
				g.logger.DebugContext(ctx, "skipping Gemini chunk without candidates", "chunk", chunks)
				continue
			}
			if err != nil {
				g.logger.WarnContext(ctx, "unusable Gemini chunk", "error", err, "chunk", chunks)
				yield("", err)
				return
			}
			chunks++
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}

		g.logger.DebugContext(ctx, "Gemini stream finished", "chunks", chunks)
	}
}

func (g *GeminiGenerator) mapError(ctx context.Context, err error, chunks int) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	g.logger.ErrorContext(ctx, "Gemini stream error", "error", err, "chunks", chunks)
	return fmt.Errorf("%w: gemini: %v", generation.ErrTransientFailure, err)
}

// chunkText extracts the text of the first candidate of a streamed response.
func chunkText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response chunk", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", errNoCandidates
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", nil
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	return text, nil
}
