// Package alert provides the local disruptive alert and the cooldown gate
// that rate-limits it.
package alert

import (
	"context"
	"sync"
	"time"

	"borderd/internal/logging"
)

// DefaultCooldown is the minimum interval between two effective firings.
const DefaultCooldown = 5 * time.Second

// Sounder performs the disruptive local alert action.
type Sounder interface {
	Sound(ctx context.Context) error
}

// Throttle gates a Sounder so it fires at most once per cooldown interval
// regardless of how often Fire is called.
//
// Each throttle owns its cooldown state; sensors that want a local alert
// each construct their own instance, so instances never interfere. The
// state is in-memory only and resets on process restart.
type Throttle struct {
	sounder  Sounder
	cooldown time.Duration

	mu        sync.Mutex
	lastFired time.Time
	now       func() time.Time
}

// NewThrottle returns a throttle around sounder. A non-positive cooldown
// falls back to DefaultCooldown.
func NewThrottle(sounder Sounder, cooldown time.Duration) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if sounder == nil {
		sounder = NopSounder{}
	}
	return &Throttle{
		sounder:  sounder,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Fire attempts the alert action. Inside the cooldown window it is a
// no-op. Outside it, the attempt timestamp advances before the action
// runs, so a failing sounder cannot be retried in a tight loop; the
// failure itself is logged and never propagated.
func (t *Throttle) Fire(ctx context.Context) {
	t.mu.Lock()
	now := t.now()
	if !t.lastFired.IsZero() && now.Sub(t.lastFired) < t.cooldown {
		t.mu.Unlock()
		return
	}
	t.lastFired = now
	t.mu.Unlock()

	if err := t.sounder.Sound(ctx); err != nil {
		logging.Warn("local alert failed", "error", err)
	}
}

// NopSounder discards alerts. Used when no alert hardware is configured
// and as the fallback sink.
type NopSounder struct{}

// Sound implements Sounder.
func (NopSounder) Sound(ctx context.Context) error { return nil }
