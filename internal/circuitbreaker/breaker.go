// Package circuitbreaker guards the status API from being hammered across a
// full roster pass while it is hard-down. Accounts denied by an open breaker
// are classified with unavailable status and refreshed next pass.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the breaker state.
type State string

const (
	// StateClosed allows all requests.
	StateClosed State = "closed"
	// StateOpen denies requests until the cooldown elapses.
	StateOpen State = "open"
	// StateHalfOpen allows a single probe request.
	StateHalfOpen State = "half_open"
)

// Config configures a Breaker.
type Config struct {
	Threshold int           // consecutive failures before opening
	Cooldown  time.Duration // time open before allowing a probe
}

// DefaultConfig returns the defaults used for the status API.
func DefaultConfig() Config {
	return Config{
		Threshold: 5,
		Cooldown:  60 * time.Second,
	}
}

// Breaker trips after a run of consecutive failures and recovers through a
// single successful probe. Safe for concurrent use.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu               sync.Mutex
	state            State
	consecutiveFails int
	openedAt         time.Time
	probing          bool
}

// New creates a breaker. Non-positive config values fall back to defaults.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		state:     StateClosed,
	}
}

// Allow reports whether a request may proceed. While open, it lets one probe
// through after the cooldown; the probe's outcome decides the next state.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// Success records a successful request and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = 0
	b.state = StateClosed
	b.probing = false
}

// Failure records a failed request. A run of threshold failures, or any
// failed probe, opens the breaker.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails++
	if b.state == StateHalfOpen || b.consecutiveFails >= b.threshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.probing = false
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
