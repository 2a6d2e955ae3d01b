package narration

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/vinodismyname/ritualstats/config"
)

// Params are the fixed generation parameters sent with every prompt.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// DefaultParams matches the short-description budget.
func DefaultParams() Params {
	return Params{MaxTokens: config.DefaultMaxTokens, Temperature: config.DefaultTemperature}
}

// ModelGenerator adapts any langchaingo model to Generator and classifies
// failures into ErrUnauthorized and *RateLimitError.
type ModelGenerator struct {
	model  llms.Model
	params Params
}

// NewModelGenerator wraps model with p.
func NewModelGenerator(model llms.Model, p Params) *ModelGenerator {
	if p.MaxTokens <= 0 {
		p.MaxTokens = config.DefaultMaxTokens
	}
	return &ModelGenerator{model: model, params: p}
}

// OpenAIConfig configures the hosted model. APIKey has no default.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Params  Params
	Client  *http.Client
}

// NewOpenAI builds a generator backed by the OpenAI chat API.
func NewOpenAI(cfg OpenAIConfig) (*ModelGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&recordingDoer{client: hc}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("narration: create openai client: %w", err)
	}
	return NewModelGenerator(llm, cfg.Params), nil
}

// Generate sends one prompt and trims the reply.
func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	st := &callStatus{}
	ctx = context.WithValue(ctx, statusKey{}, st)
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.params.Temperature),
		llms.WithMaxTokens(g.params.MaxTokens),
	)
	if err != nil {
		return "", classify(err, st)
	}
	return strings.TrimSpace(out), nil
}

// callStatus is filled in by recordingDoer for the request that carries it.
type callStatus struct {
	code       int
	retryAfter time.Duration
}

type statusKey struct{}

// recordingDoer keeps the HTTP status and Retry-After of the last response
// so errors can be classified without parsing provider messages.
type recordingDoer struct {
	client *http.Client
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if resp != nil {
		if st, ok := req.Context().Value(statusKey{}).(*callStatus); ok {
			st.code = resp.StatusCode
			st.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
	}
	return resp, err
}

func classify(err error, st *callStatus) error {
	code := st.code
	if code == 0 {
		// models not built through NewOpenAI only surface the status in text
		msg := err.Error()
		switch {
		case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
			code = http.StatusUnauthorized
		case strings.Contains(msg, "429"):
			code = http.StatusTooManyRequests
		}
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: st.retryAfter, Err: err}
	}
	return fmt.Errorf("narration: generate: %w", err)
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
