package synth

import (
	"context"
	"errors"
	"time"
)

// Defaults for the retry policy.
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 30 * time.Second
)

// RetryPolicy bounds the attempts made for one request.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy is 5 attempts with 1s, 2s, 4s, 8s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseBackoff * 2^(attempt-1), capped at MaxBackoff when set.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// State is the lifecycle position of one synthesis request.
type State int

// Request states. Pending and Retrying lead to InFlight; InFlight ends in
// Succeeded, Retrying or Exhausted.
const (
	StatePending State = iota
	StateInFlight
	StateRetrying
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// request tracks one query's retry state.
type request struct {
	policy  RetryPolicy
	state   State
	attempt int           // attempts started so far
	backoff time.Duration // wait before the next attempt while Retrying
	err     error         // last failure
}

func newRequest(policy RetryPolicy) *request {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &request{policy: policy, state: StatePending}
}

// done reports whether the request reached a terminal state.
func (r *request) done() bool {
	return r.state == StateSucceeded || r.state == StateExhausted
}

// start moves a pending or retrying request in flight.
func (r *request) start() {
	r.attempt++
	r.backoff = 0
	r.state = StateInFlight
}

// succeed ends the request successfully.
func (r *request) succeed() {
	r.err = nil
	r.state = StateSucceeded
}

// fail records err. The request retries unless err is terminal or the
// attempt ceiling is reached.
func (r *request) fail(err error) {
	r.err = err
	var term terminalError
	if errors.As(err, &term) || r.attempt >= r.policy.MaxAttempts {
		r.state = StateExhausted
		return
	}
	r.backoff = r.policy.Backoff(r.attempt)
	r.state = StateRetrying
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
