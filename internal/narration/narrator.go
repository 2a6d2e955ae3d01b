package narration

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/ritualstats/config"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Item is one prompt keyed by a stable identifier.
type Item struct {
	Key    string
	Prompt string
}

// Narration is the outcome for one Item. Text holds the placeholder when
// Failed is set.
type Narration struct {
	Key      string        `json:"key"`
	Text     string        `json:"text"`
	Failed   bool          `json:"failed,omitempty"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"-"`
}

// Narrator fans prompts out to a Retrier under a concurrency cap.
type Narrator struct {
	retrier *Retrier
	sem     *semaphore.Weighted
	// OnDone, when set, observes every finished narration. It may be
	// called concurrently.
	OnDone func(Narration)
}

// NewNarrator caps in-flight generations at limit.
func NewNarrator(gen Generator, p Policy, limit int) *Narrator {
	if limit <= 0 {
		limit = config.DefaultMaxConcurrentNarrations
	}
	return &Narrator{
		retrier: NewRetrier(gen, p),
		sem:     semaphore.NewWeighted(int64(limit)),
	}
}

// WithSleep replaces the retry sleep, mainly for tests.
func (n *Narrator) WithSleep(s SleepFunc) *Narrator {
	n.retrier.Sleep = s
	return n
}

// Narrate generates every item and returns the results in item order. A
// failed item becomes a placeholder and does not stop the others; only
// context cancellation returns an error.
func (n *Narrator) Narrate(ctx context.Context, items []Item) ([]Narration, error) {
	out := make([]Narration, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, it := range items {
		if err := n.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer n.sem.Release(1)
			out[i] = n.one(gctx, it)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (n *Narrator) one(ctx context.Context, it Item) Narration {
	log := zerolog.Ctx(ctx).With().Str("narration", it.Key).Logger()
	ctx = log.WithContext(ctx)

	start := time.Now()
	text, attempts, err := n.retrier.Generate(ctx, it.Prompt)
	res := Narration{Key: it.Key, Text: text, Attempts: attempts, Elapsed: time.Since(start)}
	if err != nil {
		res.Text = Placeholder(err)
		res.Failed = true
	} else {
		log.Debug().Int("attempts", attempts).Dur("elapsed", res.Elapsed).Msg("narration generated")
	}
	if n.OnDone != nil {
		n.OnDone(res)
	}
	return res
}
