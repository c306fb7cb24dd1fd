package generation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"golang.org/x/time/rate"
)

// ResilienceConfig controls rate limiting and retries in ResilientGenerator.
type ResilienceConfig struct {
	// MaxRetries is the number of extra attempts made to open a stream.
	MaxRetries int

	// RetryDelay is the initial backoff delay; it grows exponentially.
	RetryDelay time.Duration

	// RequestsPerSecond caps how often streams are opened. Zero disables the limit.
	RequestsPerSecond float64
}

// ResilientGenerator wraps a Generator with rate limiting and retries.
//
// Retries only happen before the first fragment is produced. Once a fragment
// has been handed to the caller a failure is returned as-is, since replaying
// the stream would duplicate text the caller already consumed.
type ResilientGenerator struct {
	next    Generator
	limiter *rate.Limiter
	retry   retry.Config
	logger  *slog.Logger
}

// NewResilientGenerator wraps next.
func NewResilientGenerator(next Generator, cfg ResilienceConfig, logger *slog.Logger) *ResilientGenerator {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	return &ResilientGenerator{
		next:    next,
		limiter: limiter,
		retry: retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  cfg.RetryDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
		logger: logger.With("component", "resilient_generator"),
	}
}

var _ Generator = (*ResilientGenerator)(nil)

// openedStream is a backend stream positioned after its first fragment.
type openedStream struct {
	first string
	next  func() (string, error, bool)
	stop  func()
	empty bool
}

// GenerateStream implements Generator.
func (g *ResilientGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := g.open(ctx, prompt)
		if err != nil {
			yield("", err)
			return
		}
		defer stream.stop()

		if stream.empty || !yield(stream.first, nil) {
			return
		}

		for {
			fragment, err, ok := stream.next()
			if !ok {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// open starts a backend stream and pulls until the first fragment, retrying
// retryable failures with exponential backoff.
func (g *ResilientGenerator) open(ctx context.Context, prompt string) (*openedStream, error) {
	cfg := g.retry
	cfg.IsRetryable = func(err error) bool { return isRetryable(ctx, err) }
	cfg.OnRetry = func(attempt int, err error) {
		g.logger.Warn("generation stream failed to start, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", err)
	}

	stream, err := retry.New[*openedStream](cfg).Do(ctx, func(ctx context.Context) (*openedStream, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		next, stop := iter.Pull2(g.next.GenerateStream(ctx, prompt))
		for {
			fragment, err, ok := next()
			if !ok {
				return &openedStream{next: next, stop: stop, empty: true}, nil
			}
			if err != nil {
				stop()
				return nil, err
			}
			if fragment == "" {
				continue
			}
			return &openedStream{first: fragment, next: next, stop: stop}, nil
		}
	})
	if err == nil {
		return stream, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if isRetryable(ctx, err) {
		return nil, fmt.Errorf("%w: stream failed after %d attempts: %w", ErrTransientFailure, cfg.MaxAttempts, err)
	}
	return nil, err
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, ErrContentBlocked),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
