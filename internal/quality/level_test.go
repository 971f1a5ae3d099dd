package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelMonitor_SilenceIsFloor(t *testing.T) {
	m := NewLevelMonitor(16000, 500, 1000)
	rms, peak := m.Update(make([]int16, 512), 0)

	assert.Equal(t, silentFloorDB, rms)
	assert.Equal(t, silentFloorDB, peak)
}

func TestLevelMonitor_FullScaleIsNearZeroDBFS(t *testing.T) {
	m := NewLevelMonitor(16000, 500, 1000)
	full := make([]int16, 512)
	for i := range full {
		full[i] = 32767
	}
	rms, peak := m.Update(full, 0)

	assert.InDelta(t, 0, rms, 0.01)
	assert.InDelta(t, 0, peak, 0.01)
}

func TestLevelMonitor_PeakHoldPersistsThenDecays(t *testing.T) {
	m := NewLevelMonitor(16000, 500, 100) // 100ms hold

	loud := make([]int16, 512)
	loud[0] = 20000
	_, peak1 := m.Update(loud, 0)
	assert.InDelta(t, dbfsFromLinear(20000), peak1, 0.01)

	quiet := make([]int16, 512)
	quiet[0] = 100
	_, peak2 := m.Update(quiet, 20) // still within the 100ms hold window
	assert.InDelta(t, dbfsFromLinear(20000), peak2, 0.01, "peak should still be held")

	_, peak3 := m.Update(quiet, 200) // past the hold window
	assert.InDelta(t, dbfsFromLinear(100), peak3, 0.01, "peak should have decayed to the new frame")
}

func TestLevelMonitor_RMSWindowSlidesOut(t *testing.T) {
	m := NewLevelMonitor(16000, 32, 1000) // 32ms window == exactly one 512-sample frame @16kHz

	loud := make([]int16, 512)
	for i := range loud {
		loud[i] = 10000
	}
	rmsLoud, _ := m.Update(loud, 0)
	assert.InDelta(t, dbfsFromLinear(10000), rmsLoud, 0.01)

	quiet := make([]int16, 512)
	rmsQuiet, _ := m.Update(quiet, 32)
	// The window is exactly one frame wide, so the loud frame has fully
	// slid out and the RMS should reflect only the silent frame.
	assert.Equal(t, silentFloorDB, rmsQuiet)
}
