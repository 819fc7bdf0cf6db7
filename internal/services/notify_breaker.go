package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var errBreakerOpen = errors.New("notifier circuit open")

// notifyBreaker trips after maxFailures consecutive failures and lets a
// single probe through once resetTimeout has passed.
type notifyBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

func newNotifyBreaker(maxFailures int, resetTimeout time.Duration) *notifyBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &notifyBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout, now: time.Now}
}

func (b *notifyBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

func (b *notifyBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.state = BreakerClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

func (b *notifyBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GuardedNotifier sends through primary while it is healthy and through
// fallback whenever primary fails or its breaker is open.
type GuardedNotifier struct {
	primary  Notifier
	fallback Notifier
	breaker  *notifyBreaker
	logger   *logrus.Logger
}

func NewGuardedNotifier(primary, fallback Notifier, maxFailures int, resetTimeout time.Duration, logger *logrus.Logger) *GuardedNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &GuardedNotifier{
		primary:  primary,
		fallback: fallback,
		breaker:  newNotifyBreaker(maxFailures, resetTimeout),
		logger:   logger,
	}
}

func (g *GuardedNotifier) Notify(ctx context.Context, n AutomationNotice) error {
	err := errBreakerOpen
	if g.breaker.allow() {
		err = g.primary.Notify(ctx, n)
		g.breaker.record(err)
		if err == nil {
			return nil
		}
		g.logger.Warnf("notifier: primary failed (%s): %v", g.breaker.State(), err)
	}
	if g.fallback == nil {
		return err
	}
	return g.fallback.Notify(ctx, n)
}

// State reports the primary's breaker state.
func (g *GuardedNotifier) State() BreakerState { return g.breaker.State() }
