package injection

import (
	"sync"
	"time"

	"github.com/coldvox/engine/internal/config"
)

// successEMAAlpha is the success-rate EMA smoothing factor (spec §4.8
// step 5).
const successEMAAlpha = 0.3

// History tracks per-(app_id, method) success rate and cooldown state
// (spec §3 PerAppHistory). It is owned exclusively by one Manager's task
// and never shared across goroutines beyond that owner (spec §5), so a
// plain mutex rather than syncx.RWGuard is sufficient and matches this
// package's single-writer discipline.
type History struct {
	cfg config.InjectionConfig

	mu    sync.Mutex
	stats map[appMethodKey]*methodStats
}

// NewHistory builds an empty History tuned by cfg's cooldown knobs.
func NewHistory(cfg config.InjectionConfig) *History {
	return &History{cfg: cfg, stats: make(map[appMethodKey]*methodStats)}
}

func (h *History) entry(appID string, method Method) *methodStats {
	key := appMethodKey{appID: appID, method: method}
	s, ok := h.stats[key]
	if !ok {
		s = &methodStats{}
		h.stats[key] = s
	}
	return s
}

// RecordSuccess resets any cooldown for (appID, method) and updates the
// success-rate EMA toward 1 (spec §4.8 step 5).
func (h *History) RecordSuccess(appID string, method Method) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.entry(appID, method)
	s.successRate = ema(s.successRate, 1, successEMAAlpha)
	s.consecutiveFails = 0
	s.currentCooldown = 0
	s.cooldownUntil = time.Time{}
}

// RecordFailure applies the doubling-backoff cooldown (spec §3 PerAppHistory
// invariant: `cooldown_initial * backoff^k` capped at `cooldown_max`) and
// decays the success-rate EMA toward 0.
func (h *History) RecordFailure(appID string, method Method, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.entry(appID, method)
	s.successRate = ema(s.successRate, 0, successEMAAlpha)
	s.lastFailure = now
	s.consecutiveFails++
	s.currentCooldown = CooldownFor(h.cfg, s.consecutiveFails)
	s.cooldownUntil = now.Add(s.currentCooldown)
}

// CooldownFor computes `min(cooldown_max, cooldown_initial * backoff^k)`
// for consecutive-failure count k (spec §8's quantified invariant).
func CooldownFor(cfg config.InjectionConfig, consecutiveFails int) time.Duration {
	if consecutiveFails <= 0 {
		return 0
	}
	initial := time.Duration(cfg.CooldownInitialMs) * time.Millisecond
	maxCooldown := time.Duration(cfg.CooldownMaxMs) * time.Millisecond
	factor := cfg.CooldownBackoffFactor
	if factor < 1 {
		factor = 1
	}

	backoff := float64(initial)
	for i := 1; i < consecutiveFails; i++ {
		backoff *= factor
		if backoff >= float64(maxCooldown) {
			return maxCooldown
		}
	}
	d := time.Duration(backoff)
	if d > maxCooldown {
		return maxCooldown
	}
	return d
}

// InCooldown reports whether (appID, method) is currently quarantined.
func (h *History) InCooldown(appID string, method Method, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stats[appMethodKey{appID: appID, method: method}]
	if !ok {
		return false
	}
	return now.Before(s.cooldownUntil)
}

// SuccessRate returns the current EMA success rate for (appID, method),
// or 0 if never observed.
func (h *History) SuccessRate(appID string, method Method) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.stats[appMethodKey{appID: appID, method: method}]
	if !ok {
		return 0
	}
	return s.successRate
}

// Reorder promotes methods with recent success in this app and filters out
// methods currently in cooldown (spec §4.8 step 4). NoOp is never filtered
// or reordered away from the tail.
func (h *History) Reorder(appID string, plan Plan, now time.Time) Plan {
	h.mu.Lock()
	defer h.mu.Unlock()

	var eligible []Method
	for _, m := range plan {
		if m == NoOp {
			continue
		}
		if s, ok := h.stats[appMethodKey{appID: appID, method: m}]; ok && now.Before(s.cooldownUntil) {
			continue
		}
		eligible = append(eligible, m)
	}

	// Stable sort by descending success rate; methods never observed keep
	// their relative planner order (stable sort leaves ties in place).
	sortBySuccessRateDesc(eligible, func(m Method) float64 {
		if s, ok := h.stats[appMethodKey{appID: appID, method: m}]; ok {
			return s.successRate
		}
		return 0
	})

	return append(eligible, NoOp)
}

func ema(current, sample, alpha float64) float64 {
	return current + alpha*(sample-current)
}

// sortBySuccessRateDesc stable-sorts methods by descending score, so that
// equal scores (including the common "never observed" 0 case) retain the
// planner's original ordering rather than being shuffled.
func sortBySuccessRateDesc(methods []Method, score func(Method) float64) {
	for i := 1; i < len(methods); i++ {
		for j := i; j > 0 && score(methods[j]) > score(methods[j-1]); j-- {
			methods[j], methods[j-1] = methods[j-1], methods[j]
		}
	}
}
