package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAuthConfiguration means the provider rejected our credentials;
	// retrying cannot help.
	ErrAuthConfiguration = errors.New("ai provider authentication failed, check the API key")
	ErrRateLimited       = errors.New("ai provider rate limit exceeded, try again later")
	ErrEmptyCompletion   = errors.New("empty completion from ai provider")
)

// Retrier wraps a Provider with a bounded linear retry policy:
// auth failures abort immediately, rate limits back off attempt*base,
// everything else (including empty completions) waits a flat base delay.
type Retrier struct {
	Provider    Provider
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewRetrier(p Provider, maxAttempts int, baseDelay time.Duration) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Retrier{
		Provider:    p,
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		sleep:       sleepWithContext,
	}
}

func (r *Retrier) Chat(ctx context.Context, messages []Message) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		reply, err := r.Provider.Chat(ctx, messages)
		if err == nil {
			reply = strings.TrimSpace(reply)
			if reply != "" {
				return reply, nil
			}
			err = ErrEmptyCompletion
		}
		lastErr = err

		switch KindOf(err) {
		case KindAuth:
			return "", fmt.Errorf("%w: %w", ErrAuthConfiguration, err)
		case KindRateLimited:
			if attempt < r.MaxAttempts {
				r.sleep(ctx, time.Duration(attempt)*r.BaseDelay)
				continue
			}
			return "", fmt.Errorf("%w: %w", ErrRateLimited, err)
		default:
			if attempt < r.MaxAttempts {
				r.sleep(ctx, r.BaseDelay)
				continue
			}
		}
	}

	return "", fmt.Errorf("failed to get ai response after %d attempts: %w", r.MaxAttempts, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
