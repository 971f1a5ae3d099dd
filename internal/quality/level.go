package quality

import "math"

// silentFloorDB stands in for -infinity dBFS on true silence so callers never
// have to special-case -Inf.
const silentFloorDB = -120.0

const fullScale = 32768.0

// LevelMonitor tracks a sliding-window RMS and a decaying peak-hold over a
// stream of int16 PCM frames. Timing is driven by each frame's own
// TimestampMs, never the wall clock, so it stays deterministic under test.
type LevelMonitor struct {
	windowSamples int
	peakHoldMs    uint64

	ring      []int64 // squared sample values, circular
	ringHead  int
	ringCount int
	sumSq     int64

	heldPeakLinear int32
	heldUntilMs    uint64
	haveHeld       bool
}

// NewLevelMonitor builds a monitor for the given sample rate and window
// durations (milliseconds).
func NewLevelMonitor(sampleRateHz, rmsWindowMs, peakHoldMs int) *LevelMonitor {
	windowSamples := sampleRateHz * rmsWindowMs / 1000
	if windowSamples < 1 {
		windowSamples = 1
	}
	return &LevelMonitor{
		windowSamples: windowSamples,
		peakHoldMs:    uint64(peakHoldMs),
		ring:          make([]int64, windowSamples),
	}
}

// Update feeds one frame's samples into the rolling window and returns the
// current RMS and peak levels in dBFS.
func (m *LevelMonitor) Update(samples []int16, frameTimestampMs uint64) (rmsDB, peakDB float64) {
	var framePeak int32
	for _, s := range samples {
		m.pushSquare(int64(s) * int64(s))
		abs := int32(s)
		if abs < 0 {
			abs = -abs
		}
		if abs > framePeak {
			framePeak = abs
		}
	}

	if !m.haveHeld || framePeak > m.heldPeakLinear || frameTimestampMs >= m.heldUntilMs {
		m.heldPeakLinear = framePeak
		m.heldUntilMs = frameTimestampMs + m.peakHoldMs
		m.haveHeld = true
	}

	return m.currentRMSDBFS(), dbfsFromLinear(float64(m.heldPeakLinear))
}

func (m *LevelMonitor) pushSquare(sq int64) {
	if m.ringCount < len(m.ring) {
		m.ring[(m.ringHead+m.ringCount)%len(m.ring)] = sq
		m.ringCount++
		m.sumSq += sq
		return
	}
	old := m.ring[m.ringHead]
	m.ring[m.ringHead] = sq
	m.ringHead = (m.ringHead + 1) % len(m.ring)
	m.sumSq += sq - old
}

func (m *LevelMonitor) currentRMSDBFS() float64 {
	if m.ringCount == 0 {
		return silentFloorDB
	}
	meanSq := float64(m.sumSq) / float64(m.ringCount)
	return dbfsFromLinear(math.Sqrt(meanSq))
}

// CurrentRMSDBFS returns the most recently computed RMS level.
func (m *LevelMonitor) CurrentRMSDBFS() float64 { return m.currentRMSDBFS() }

// CurrentPeakDBFS returns the currently held peak level.
func (m *LevelMonitor) CurrentPeakDBFS() float64 { return dbfsFromLinear(float64(m.heldPeakLinear)) }

func dbfsFromLinear(v float64) float64 {
	if v <= 0 {
		return silentFloorDB
	}
	db := 20 * math.Log10(v/fullScale)
	if db < silentFloorDB {
		return silentFloorDB
	}
	return db
}
