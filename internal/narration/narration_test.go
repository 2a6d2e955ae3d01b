package narration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scripted returns errs in order, then succeeds with text.
type scripted struct {
	mu    sync.Mutex
	errs  []error
	text  string
	calls int
}

func (s *scripted) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.text, nil
}

type sleepLog struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (l *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits = append(l.waits, d)
	return ctx.Err()
}

func TestRetrier_BackoffThenSuccess(t *testing.T) {
	gen := &scripted{errs: []error{errors.New("boom"), errors.New("boom")}, text: "ok"}
	var sl sleepLog
	r := NewRetrier(gen, Policy{})
	r.Sleep = sl.sleep

	text, attempts, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sl.waits)
}

func TestRetrier_ExhaustsAfterThreeAttempts(t *testing.T) {
	gen := &scripted{errs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
	var sl sleepLog
	r := NewRetrier(gen, Policy{})
	r.Sleep = sl.sleep

	_, attempts, err := r.Generate(context.Background(), "p")
	require.EqualError(t, err, "c")
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, gen.calls)
	// no sleep after the last attempt
	require.Len(t, sl.waits, 2)
}

func TestRetrier_UnauthorizedIsNotRetried(t *testing.T) {
	gen := &scripted{errs: []error{fmt.Errorf("%w: bad key", ErrUnauthorized)}, text: "never"}
	var sl sleepLog
	r := NewRetrier(gen, Policy{})
	r.Sleep = sl.sleep

	_, attempts, err := r.Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 1, attempts)
	require.Empty(t, sl.waits)
}

func TestRetrier_RateLimitWaits(t *testing.T) {
	gen := &scripted{errs: []error{
		&RateLimitError{RetryAfter: 120 * time.Second, Err: errors.New("429")},
		&RateLimitError{Err: errors.New("429")},
	}, text: "ok"}
	var sl sleepLog
	r := NewRetrier(gen, Policy{MaxRateLimitWait: 30 * time.Second})
	r.Sleep = sl.sleep

	_, _, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	// the server's wait is honored in full; only the fallback is capped
	require.Equal(t, []time.Duration{120 * time.Second, 30 * time.Second}, sl.waits)
}

func TestNarrator_PlaceholderAndOrder(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if prompt == "bad" {
			return "", errors.New("service down")
		}
		return "text for " + prompt, nil
	})
	var sl sleepLog
	var done atomic.Int32
	n := NewNarrator(gen, Policy{}, 2).WithSleep(sl.sleep)
	n.OnDone = func(Narration) { done.Add(1) }

	items := []Item{{"individuals", "a"}, {"families", "bad"}, {"gender", "c"}}
	out, err := n.Narrate(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "individuals", out[0].Key)
	require.Equal(t, "text for a", out[0].Text)
	require.True(t, out[1].Failed)
	require.Equal(t, "[Could not generate description: service down]", out[1].Text)
	require.Equal(t, 3, out[1].Attempts)
	require.Equal(t, "text for c", out[2].Text)
	require.EqualValues(t, 3, done.Load())
}

func TestNarrator_RespectsConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return prompt, nil
	})
	n := NewNarrator(gen, Policy{}, 2)
	items := make([]Item, 8)
	for i := range items {
		items[i] = Item{Key: fmt.Sprint(i), Prompt: fmt.Sprint(i)}
	}
	out, err := n.Narrate(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 8)
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestNarrator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := NewNarrator(GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "x", nil
	}), Policy{}, 1)
	_, err := n.Narrate(ctx, []Item{{"a", "a"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	err := classify(errors.New("boom"), &callStatus{code: http.StatusUnauthorized})
	require.ErrorIs(t, err, ErrUnauthorized)

	err = classify(errors.New("slow down"), &callStatus{code: http.StatusTooManyRequests, retryAfter: 3 * time.Second})
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 3*time.Second, rl.RetryAfter)

	err = classify(errors.New("API returned unexpected status code: 429"), &callStatus{})
	require.ErrorAs(t, err, &rl)
	require.Zero(t, rl.RetryAfter)

	err = classify(errors.New("connection reset"), &callStatus{code: 500})
	require.NotErrorIs(t, err, ErrUnauthorized)
	require.False(t, errors.As(err, &rl))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 12*time.Second, parseRetryAfter("12", now))
	require.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	require.Zero(t, parseRetryAfter("", now))
	require.Zero(t, parseRetryAfter("soon", now))
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{APIKey: "  "})
	require.ErrorIs(t, err, ErrMissingCredential)
}
