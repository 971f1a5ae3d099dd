package quality

import (
	"time"

	"github.com/coldvox/engine/internal/audio"
	"github.com/coldvox/engine/internal/config"
)

// Monitor is the Quality Monitor (spec §4.10): per-frame RMS/peak tracking
// plus optional off-axis spectral detection, with warning-rate limiting.
type Monitor struct {
	cfg      config.QualityConfig
	level    *LevelMonitor
	spectral *SpectralAnalyzer

	lastWarning   time.Time
	haveLastWarn  bool
}

// New builds a Monitor for the given sample rate and quality configuration.
func New(sampleRateHz int, cfg config.QualityConfig) *Monitor {
	return &Monitor{
		cfg:      cfg,
		level:    NewLevelMonitor(sampleRateHz, cfg.RMSWindowMs, cfg.PeakHoldMs),
		spectral: NewSpectralAnalyzer(sampleRateHz, cfg.OffAxisThreshold),
	}
}

// Analyze runs RMS/peak and (if enabled) spectral analysis on one frame and
// classifies the result. Clipping takes priority over TooQuiet, which takes
// priority over OffAxis: a frame that is both clipping and quiet is reported
// as clipping, since that is the more actionable condition.
func (m *Monitor) Analyze(frame audio.AudioFrame) Status {
	rmsDB, peakDB := m.level.Update(frame.Samples[:], frame.TimestampMs)

	if peakDB >= m.cfg.ClippingDB {
		return warnClipping(peakDB)
	}
	if rmsDB <= m.cfg.TooQuietDB {
		return warnTooQuiet(rmsDB)
	}
	if m.cfg.OffAxisEnabled {
		if m.spectral.DetectOffAxis(frame.Samples[:]) {
			return warnOffAxis(m.spectral.LastSpectralRatio())
		}
	}
	return good(rmsDB, peakDB)
}

// ShouldWarn rate-limits repeated warnings to at most one per
// warning_cooldown; the first call after construction always returns true.
func (m *Monitor) ShouldWarn(now time.Time) bool {
	cooldown := time.Duration(m.cfg.WarningCooldownMs) * time.Millisecond
	if !m.haveLastWarn || now.Sub(m.lastWarning) >= cooldown {
		m.lastWarning = now
		m.haveLastWarn = true
		return true
	}
	return false
}

// CurrentRMSDBFS and CurrentPeakDBFS expose the monitor's last computed
// levels, e.g. for a UI meter.
func (m *Monitor) CurrentRMSDBFS() float64  { return m.level.CurrentRMSDBFS() }
func (m *Monitor) CurrentPeakDBFS() float64 { return m.level.CurrentPeakDBFS() }
