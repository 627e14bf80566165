package synth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matsen/paperbench/internal/metrics"
)

// DefaultConcurrency is the number of requests in flight at once.
const DefaultConcurrency = 50

// DefaultRequestTimeout bounds a single model call attempt.
const DefaultRequestTimeout = 2 * time.Minute

// Result is the outcome of synthesizing one query. Query is empty and Err is
// set when synthesis failed.
type Result struct {
	Query        string
	Reasoning    string
	InputTokens  int
	OutputTokens int
	Attempts     int
	Err          error
}

// Synthesizer turns natural-language queries into SQL with a Completer.
type Synthesizer struct {
	completer      Completer
	schema         string
	dialect        Dialect
	style          PromptStyle
	concurrency    int
	retry          RetryPolicy
	requestTimeout time.Duration
	limiter        *rate.Limiter
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSchema sets the schema text and SQL dialect given to the model.
func WithSchema(schema string, dialect Dialect) Option {
	return func(s *Synthesizer) {
		s.schema = schema
		s.dialect = dialect
	}
}

// WithPromptStyle selects the system prompt.
func WithPromptStyle(style PromptStyle) Option {
	return func(s *Synthesizer) {
		s.style = style
	}
}

// WithConcurrency bounds the number of requests in flight.
func WithConcurrency(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRetryPolicy sets the per-request retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Synthesizer) {
		s.retry = p
	}
}

// WithRequestTimeout bounds each attempt. Zero disables the timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.requestTimeout = d
	}
}

// WithRateLimit caps attempts per second across all workers. Zero or
// negative means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(s *Synthesizer) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synthesizer) {
		s.metrics = m
	}
}

// New creates a Synthesizer. The prompt style defaults to Detailed and the
// dialect to SQLite.
func New(completer Completer, opts ...Option) (*Synthesizer, error) {
	s := &Synthesizer{
		completer:      completer,
		dialect:        Dialect{Name: "SQLite", Like: "LIKE"},
		style:          Detailed,
		concurrency:    DefaultConcurrency,
		retry:          DefaultRetryPolicy(),
		requestTimeout: DefaultRequestTimeout,
		limiter:        rate.NewLimiter(rate.Inf, 0),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParsePromptStyle(string(s.style)); err != nil {
		return nil, err
	}
	return s, nil
}

// Synthesize translates one query. Failures are returned in Result.Err.
func (s *Synthesizer) Synthesize(ctx context.Context, query string) Result {
	return s.run(ctx, 0, query)
}

// SynthesizeBatch translates queries with at most the configured number of
// requests in flight. results[i] always corresponds to queries[i]; a failing
// request never affects its siblings.
func (s *Synthesizer) SynthesizeBatch(ctx context.Context, queries []string) []Result {
	results := make([]Result, len(queries))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					results[i] = Result{Err: fmt.Errorf("synthesis panicked: %v", p)}
				}
			}()

			results[i] = s.run(ctx, i, q)
		}(i, q)
	}

	wg.Wait()
	return results
}

// run drives one request through its states until it succeeds or is exhausted.
func (s *Synthesizer) run(ctx context.Context, index int, query string) Result {
	model := s.completer.Model()

	messages, err := BuildMessages(query, s.schema, s.style, s.dialect)
	if err != nil {
		return Result{Err: err}
	}

	var res Result
	req := newRequest(s.retry)
	for !req.done() {
		switch req.state {
		case StatePending:
			req.start()

		case StateRetrying:
			s.metrics.IncLLMRetry(model)
			s.logger.Warn("retrying query synthesis",
				zap.Int("index", index),
				zap.Int("attempt", req.attempt),
				zap.Duration("backoff", req.backoff),
				zap.Error(req.err))
			if err := wait(ctx, req.backoff); err != nil {
				req.fail(Terminal(err))
				continue
			}
			req.start()

		case StateInFlight:
			comp, err := s.attempt(ctx, messages)
			if err != nil {
				req.fail(err)
				continue
			}
			res.InputTokens = comp.InputTokens
			res.OutputTokens = comp.OutputTokens
			res.Reasoning = comp.Reasoning

			sql, err := ExtractQuery(comp.Text)
			if err != nil {
				req.fail(Terminal(err))
				continue
			}
			res.Query = sql
			req.succeed()
		}
	}

	res.Attempts = req.attempt
	if req.state == StateExhausted {
		res.Query = ""
		res.Err = req.err
		s.logger.Error("query synthesis failed",
			zap.Int("index", index),
			zap.Int("attempts", req.attempt),
			zap.Error(req.err))
	} else if index == 0 {
		s.logger.Debug("first synthesized query",
			zap.String("model", model),
			zap.Int("input_tokens", res.InputTokens),
			zap.Int("output_tokens", res.OutputTokens),
			zap.String("sql", res.Query))
	}

	s.metrics.ObserveLLMResult(model, res.Err == nil, res.InputTokens, res.OutputTokens)
	return res
}

// attempt makes one rate-limited model call under the per-request timeout.
func (s *Synthesizer) attempt(ctx context.Context, messages []Message) (Completion, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Completion{}, Terminal(fmt.Errorf("rate limiter: %w", err))
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	comp, err := s.completer.Complete(ctx, messages)
	s.metrics.ObserveLLMAttempt(s.completer.Model(), time.Since(start))
	return comp, err
}
