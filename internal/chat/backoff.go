package chat

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReconnectPolicy hands out reconnect delays: the n-th delay is
// min(base * 2^n, max), and at most maxAttempts delays are given out until
// Reset.
type ReconnectPolicy struct {
	b           backoff.BackOff
	attempt     int
	maxAttempts int
}

// NewReconnectPolicy builds a deterministic exponential policy.
func NewReconnectPolicy(base, max time.Duration, maxAttempts int) *ReconnectPolicy {
	exp := backoff.NewExponentialBackOff()
	// The attempt counter is incremented before the delay is computed, so
	// the first delay is already one doubling past base.
	exp.InitialInterval = 2 * base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = max
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &ReconnectPolicy{
		b:           backoff.WithMaxRetries(exp, uint64(maxAttempts)),
		maxAttempts: maxAttempts,
	}
}

// Next returns the delay before the next attempt, or false when attempts
// are exhausted.
func (p *ReconnectPolicy) Next() (time.Duration, bool) {
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	p.attempt++
	return d, true
}

// Reset starts over after a successful connection.
func (p *ReconnectPolicy) Reset() {
	p.b.Reset()
	p.attempt = 0
}

// Attempt is the number of delays handed out since the last Reset.
func (p *ReconnectPolicy) Attempt() int {
	return p.attempt
}

// MaxAttempts is the configured bound.
func (p *ReconnectPolicy) MaxAttempts() int {
	return p.maxAttempts
}
