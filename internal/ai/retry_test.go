package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedProvider returns one queued result per attempt.
type scriptedProvider struct {
	calls   int
	replies []string
	errs    []error
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	_ = ctx
	_ = messages
	i := p.calls
	p.calls++
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	return p.replies[i], p.errs[i]
}

func newTestRetrier(p Provider) (*Retrier, *[]time.Duration) {
	r := NewRetrier(p, 3, time.Second)
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) {
		slept = append(slept, d)
	}
	return r, &slept
}

func TestRetrier_SuccessFirstAttempt(t *testing.T) {
	p := &scriptedProvider{replies: []string{"hello"}, errs: []error{nil}}
	r, slept := newTestRetrier(p)

	reply, err := r.Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if p.calls != 1 {
		t.Fatalf("expected 1 call, got %d", p.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", *slept)
	}
}

func TestRetrier_AuthAbortsImmediately(t *testing.T) {
	p := &scriptedProvider{
		replies: []string{""},
		errs:    []error{newError(KindAuth, errors.New("status 401"))},
	}
	r, slept := newTestRetrier(p)

	_, err := r.Chat(context.Background(), nil)
	if !errors.Is(err, ErrAuthConfiguration) {
		t.Fatalf("expected auth configuration error, got %v", err)
	}
	if KindOf(err) != KindAuth {
		t.Fatalf("surfaced error lost its kind, got %v", KindOf(err))
	}
	if p.calls != 1 {
		t.Fatalf("auth failure must not be retried, got %d calls", p.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", *slept)
	}
}

func TestRetrier_RateLimitLinearBackoff(t *testing.T) {
	rl := newError(KindRateLimited, errors.New("status 429"))
	p := &scriptedProvider{
		replies: []string{"", "", ""},
		errs:    []error{rl, rl, rl},
	}
	r, slept := newTestRetrier(p)

	_, err := r.Chat(context.Background(), nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if KindOf(err) != KindRateLimited {
		t.Fatalf("surfaced error lost its kind, got %v", KindOf(err))
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v", i, d, (*slept)[i])
		}
	}
}

func TestRetrier_TransientRetriedThenSucceeds(t *testing.T) {
	p := &scriptedProvider{
		replies: []string{"", "ok"},
		errs:    []error{newError(KindTransient, errors.New("status 500")), nil},
	}
	r, slept := newTestRetrier(p)

	reply, err := r.Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "ok" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", p.calls)
	}
	if len(*slept) != 1 || (*slept)[0] != time.Second {
		t.Fatalf("expected one flat base delay, got %v", *slept)
	}
}

func TestRetrier_EmptyCompletionIsRetried(t *testing.T) {
	p := &scriptedProvider{
		replies: []string{"   ", "real answer"},
		errs:    []error{nil, nil},
	}
	r, _ := newTestRetrier(p)

	reply, err := r.Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "real answer" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if p.calls != 2 {
		t.Fatalf("expected empty reply to be retried, got %d calls", p.calls)
	}
}

func TestRetrier_ExhaustedWrapsLastError(t *testing.T) {
	last := newError(KindTransient, errors.New("connection reset"))
	p := &scriptedProvider{
		replies: []string{"", "", ""},
		errs:    []error{newError(KindTransient, errors.New("status 502")), last, last},
	}
	r, slept := newTestRetrier(p)

	_, err := r.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, last) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 flat delays, got %v", *slept)
	}
}
