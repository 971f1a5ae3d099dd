package injection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coldvox/engine/internal/config"
)

func TestCooldownFor_DoublingBackoffCappedAtMax(t *testing.T) {
	cfg := config.InjectionConfig{CooldownInitialMs: 1000, CooldownBackoffFactor: 2, CooldownMaxMs: 10000}

	assert.Equal(t, time.Duration(0), CooldownFor(cfg, 0))
	assert.Equal(t, 1*time.Second, CooldownFor(cfg, 1))
	assert.Equal(t, 2*time.Second, CooldownFor(cfg, 2))
	assert.Equal(t, 4*time.Second, CooldownFor(cfg, 3))
	assert.Equal(t, 8*time.Second, CooldownFor(cfg, 4))
	assert.Equal(t, 10*time.Second, CooldownFor(cfg, 5)) // would be 16s, capped at 10s
	assert.Equal(t, 10*time.Second, CooldownFor(cfg, 10))
}

func TestHistory_RecordFailureAppliesCooldown(t *testing.T) {
	cfg := config.InjectionConfig{CooldownInitialMs: 1000, CooldownBackoffFactor: 2, CooldownMaxMs: 60000}
	h := NewHistory(cfg)
	now := time.Now()

	assert.False(t, h.InCooldown("app", AccessibilityInsert, now))

	h.RecordFailure("app", AccessibilityInsert, now)
	assert.True(t, h.InCooldown("app", AccessibilityInsert, now.Add(500*time.Millisecond)))
	assert.False(t, h.InCooldown("app", AccessibilityInsert, now.Add(1100*time.Millisecond)))
}

func TestHistory_RecordSuccessResetsCooldown(t *testing.T) {
	cfg := config.InjectionConfig{CooldownInitialMs: 1000, CooldownBackoffFactor: 2, CooldownMaxMs: 60000}
	h := NewHistory(cfg)
	now := time.Now()

	h.RecordFailure("app", ClipboardAndPaste, now)
	assert.True(t, h.InCooldown("app", ClipboardAndPaste, now))

	h.RecordSuccess("app", ClipboardAndPaste)
	assert.False(t, h.InCooldown("app", ClipboardAndPaste, now))
	assert.Greater(t, h.SuccessRate("app", ClipboardAndPaste), 0.0)
}

// TestHistory_Reorder is spec §8 scenario 4: accessibility fails then
// enters cooldown, clipboard-and-paste succeeds and stays eligible.
func TestHistory_Reorder(t *testing.T) {
	cfg := config.InjectionConfig{CooldownInitialMs: 1000, CooldownBackoffFactor: 2, CooldownMaxMs: 60000}
	h := NewHistory(cfg)
	now := time.Now()

	h.RecordFailure("editor", AccessibilityInsert, now)
	h.RecordSuccess("editor", ClipboardAndPaste)

	base := Plan{AccessibilityInsert, ClipboardAndPaste, ClipboardOnly, NoOp}
	reordered := h.Reorder("editor", base, now)

	assert.NotContains(t, reordered, AccessibilityInsert)
	assert.Equal(t, ClipboardAndPaste, reordered[0])
	assert.Equal(t, NoOp, reordered[len(reordered)-1])
}
