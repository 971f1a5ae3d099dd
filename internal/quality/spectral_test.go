package quality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineTone(freqHz float64, sampleRateHz, n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRateHz))
		out[i] = int16(v)
	}
	return out
}

func TestSpectralAnalyzer_MidOnlyToneIsOffAxis(t *testing.T) {
	a := NewSpectralAnalyzer(16000, 0.3)
	samples := sineTone(1000, 16000, 512, 10000)

	offAxis := a.DetectOffAxis(samples)

	assert.True(t, offAxis, "a tone with no high-band energy should read as off-axis")
	assert.Less(t, a.LastSpectralRatio(), 0.3)
}

func TestSpectralAnalyzer_StrongHighBandIsOnAxis(t *testing.T) {
	a := NewSpectralAnalyzer(16000, 0.3)
	mid := sineTone(1000, 16000, 512, 8000)
	high := sineTone(6000, 16000, 512, 8000)
	samples := make([]int16, 512)
	for i := range samples {
		samples[i] = mid[i] + high[i]
	}

	offAxis := a.DetectOffAxis(samples)

	assert.False(t, offAxis)
	assert.GreaterOrEqual(t, a.LastSpectralRatio(), 0.3)
}

func TestSpectralAnalyzer_SilenceIsNotOffAxis(t *testing.T) {
	a := NewSpectralAnalyzer(16000, 0.3)
	offAxis := a.DetectOffAxis(make([]int16, 512))
	assert.False(t, offAxis)
}
