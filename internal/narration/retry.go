package narration

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/ritualstats/config"
)

// Policy bounds retries of a single prompt.
type Policy struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	RateLimitWait    time.Duration
	MaxRateLimitWait time.Duration
}

// DefaultPolicy is three attempts with a 1s doubling backoff. Rate limits
// wait as long as the server asks, or one minute when it does not say.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      config.DefaultMaxAttempts,
		BaseDelay:        config.DefaultBaseDelay,
		RateLimitWait:    config.DefaultRateLimitWait,
		MaxRateLimitWait: config.DefaultMaxRateLimitWait,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.RateLimitWait <= 0 {
		p.RateLimitWait = d.RateLimitWait
	}
	if p.MaxRateLimitWait <= 0 {
		p.MaxRateLimitWait = d.MaxRateLimitWait
	}
	return p
}

// wait returns how long to pause after a failed attempt (0-based).
func (p Policy) wait(attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		if rl.RetryAfter > 0 {
			return rl.RetryAfter
		}
		return min(p.RateLimitWait, p.MaxRateLimitWait)
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier wraps a Generator with the retry policy. Authorization failures
// end immediately; everything else is retried until attempts run out.
type Retrier struct {
	Gen    Generator
	Policy Policy
	Sleep  SleepFunc
}

// NewRetrier constructs a Retrier with real sleeps.
func NewRetrier(gen Generator, p Policy) *Retrier {
	return &Retrier{Gen: gen, Policy: p.normalized(), Sleep: sleepCtx}
}

// Generate returns the generated text, or the last error once the policy
// is exhausted. It reports how many attempts were made.
func (r *Retrier) Generate(ctx context.Context, prompt string) (string, int, error) {
	p := r.Policy.normalized()
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	log := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		text, err := r.Gen.Generate(ctx, prompt)
		if err == nil {
			return text, attempt + 1, nil
		}
		lastErr = err
		if errors.Is(err, ErrUnauthorized) {
			return "", attempt + 1, err
		}
		if ctx.Err() != nil {
			return "", attempt + 1, ctx.Err()
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		d := p.wait(attempt, err)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", d).Msg("narration attempt failed; retrying")
		if serr := sleep(ctx, d); serr != nil {
			return "", attempt + 1, serr
		}
	}
	log.Error().Err(lastErr).Int("attempts", p.MaxAttempts).Msg("narration failed")
	return "", p.MaxAttempts, lastErr
}
