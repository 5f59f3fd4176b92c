package tracker

import (
	"sync"
	"time"

	"whalewatch/internal/metrics"
	"whalewatch/pkg/logger"
)

const (
	// DefaultBreakerThreshold is the consecutive failure count that opens a
	// breaker.
	DefaultBreakerThreshold = 3

	// DefaultBreakerCooldown is how long an open breaker blocks polls before
	// allowing a half-open probe.
	DefaultBreakerCooldown = 2 * time.Minute
)

type breakerState struct {
	failures int
	open     bool
	openedAt time.Time
	probing  bool
}

// BreakerRegistry holds one circuit breaker per exchange. A breaker opens
// after threshold consecutive fetch failures and stays open for the cooldown;
// after the cooldown exactly one probe request is let through, and its outcome
// decides whether the breaker closes or re-opens for another full cooldown.
type BreakerRegistry struct {
	mu        sync.Mutex
	states    map[string]*breakerState
	threshold int
	cooldown  time.Duration

	now func() time.Time
}

// NewBreakerRegistry creates a breaker registry. Non-positive threshold or
// cooldown fall back to the defaults.
func NewBreakerRegistry(threshold int, cooldown time.Duration) *BreakerRegistry {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &BreakerRegistry{
		states:    make(map[string]*breakerState),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *BreakerRegistry) state(exchange string) *breakerState {
	s, ok := b.states[exchange]
	if !ok {
		s = &breakerState{}
		b.states[exchange] = s
	}
	return s
}

// Allow reports whether a poll of the exchange may proceed. While open it
// returns false until the cooldown elapses, then admits a single half-open
// probe; further calls are rejected until that probe reports an outcome.
func (b *BreakerRegistry) Allow(exchange string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(exchange)
	if !s.open {
		return true
	}
	if s.probing {
		return false
	}
	if b.now().Sub(s.openedAt) < b.cooldown {
		return false
	}

	s.probing = true
	return true
}

// RecordSuccess resets the breaker to closed regardless of prior state.
func (b *BreakerRegistry) RecordSuccess(exchange string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(exchange)
	wasOpen := s.open
	*s = breakerState{}

	metrics.BreakerOpen.WithLabelValues(exchange).Set(0)
	if wasOpen {
		logger.Infow("Circuit breaker closed", "exchange", exchange)
	}
}

// RecordFailure counts a failed fetch. At the threshold the breaker opens;
// a failed half-open probe re-opens it for another full cooldown.
func (b *BreakerRegistry) RecordFailure(exchange string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(exchange)
	if s.open {
		// Failed probe: restart the cooldown window.
		s.probing = false
		s.openedAt = b.now()
		logger.Warnw("Circuit breaker probe failed", "exchange", exchange, "cooldown", b.cooldown)
		return
	}

	s.failures++
	if s.failures >= b.threshold {
		s.open = true
		s.openedAt = b.now()
		s.failures = 0

		metrics.BreakerOpen.WithLabelValues(exchange).Set(1)
		logger.Warnw("Circuit breaker opened", "exchange", exchange, "cooldown", b.cooldown)
	}
}

// Open reports whether the breaker for an exchange is currently open.
func (b *BreakerRegistry) Open(exchange string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state(exchange).open
}
