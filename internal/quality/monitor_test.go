package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coldvox/engine/internal/audio"
	"github.com/coldvox/engine/internal/config"
)

func frameOf(t *testing.T, samples []int16, ts uint64) audio.AudioFrame {
	t.Helper()
	if len(samples) != audio.FrameSize {
		padded := make([]int16, audio.FrameSize)
		copy(padded, samples)
		samples = padded
	}
	return audio.NewAudioFrame(samples, ts, audio.TargetSampleRate)
}

func TestMonitor_SilenceIsTooQuiet(t *testing.T) {
	cfg := config.Default().Quality
	m := New(audio.TargetSampleRate, cfg)

	status := m.Analyze(frameOf(t, make([]int16, audio.FrameSize), 0))

	assert.False(t, status.Good)
	assert.Equal(t, TooQuiet, status.Warning)
}

func TestMonitor_FullScaleClips(t *testing.T) {
	cfg := config.Default().Quality
	m := New(audio.TargetSampleRate, cfg)

	full := make([]int16, audio.FrameSize)
	for i := range full {
		full[i] = 32767
	}
	status := m.Analyze(frameOf(t, full, 0))

	assert.False(t, status.Good)
	assert.Equal(t, Clipping, status.Warning)
}

func TestMonitor_ModerateToneIsGood(t *testing.T) {
	cfg := config.Default().Quality
	cfg.OffAxisEnabled = false
	m := New(audio.TargetSampleRate, cfg)

	// Roughly -18 dBFS square wave: well above too-quiet, well below clipping.
	samples := make([]int16, audio.FrameSize)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 4000
		} else {
			samples[i] = -4000
		}
	}
	status := m.Analyze(frameOf(t, samples, 0))

	assert.True(t, status.Good)
}

func TestMonitor_ShouldWarnRateLimits(t *testing.T) {
	cfg := config.Default().Quality
	cfg.WarningCooldownMs = 2000
	m := New(audio.TargetSampleRate, cfg)

	now := time.Now()
	assert.True(t, m.ShouldWarn(now))
	assert.False(t, m.ShouldWarn(now.Add(500*time.Millisecond)))
	assert.True(t, m.ShouldWarn(now.Add(2100*time.Millisecond)))
}

func TestStatus_SeverityOrdering(t *testing.T) {
	assert.Equal(t, 0, good(-20, -10).Severity())
	assert.Equal(t, 1, warnTooQuiet(-50).Severity())
	assert.Equal(t, 1, warnOffAxis(0.2).Severity())
	assert.Equal(t, 2, warnClipping(-0.5).Severity())
}
