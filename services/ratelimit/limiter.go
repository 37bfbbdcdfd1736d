package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var ErrRateLimited = errors.New("ratelimit: cooldown active")

// CooldownError tells the caller how long to wait before retrying.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %s before trying again", e.Wait.Round(100*time.Millisecond))
}

func (e *CooldownError) Unwrap() error { return ErrRateLimited }

// Limiter enforces a minimum interval between two gated operations of the same actor.
// It is not safe for concurrent use; callers hold the engine lock around Admit and Touch
// so the read-check-write on lastInteraction is a single step.
type Limiter struct {
	cooldown time.Duration
	last     map[int64]time.Time
}

func New(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown: cooldown,
		last:     make(map[int64]time.Time),
	}
}

// Admit records the interaction when the cooldown has elapsed, otherwise it returns a *CooldownError
// and leaves the timestamp untouched.
func (l *Limiter) Admit(actor int64, now time.Time) error {
	if prev, ok := l.last[actor]; ok {
		if elapsed := now.Sub(prev); elapsed < l.cooldown {
			return &CooldownError{Wait: l.cooldown - elapsed}
		}
	}
	l.last[actor] = now
	return nil
}

// Touch refreshes the timestamp without checking it. Used by exempt onboarding and menu operations.
func (l *Limiter) Touch(actor int64, now time.Time) {
	l.last[actor] = now
}

// Forget drops idle actors whose last interaction is older than the cooldown.
func (l *Limiter) Forget(now time.Time) int {
	removed := 0
	for actor, at := range l.last {
		if now.Sub(at) >= l.cooldown {
			delete(l.last, actor)
			removed++
		}
	}
	return removed
}
