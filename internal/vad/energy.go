package vad

import (
	"math"

	"github.com/coldvox/engine/internal/audio"
)

const (
	minNoiseFloorDB = -80.0
	maxNoiseFloorDB = -20.0
)

// AdaptiveThreshold tracks a noise floor via an EMA over non-speech energy
// readings, and derives onset/offset thresholds relative to it (spec §4.4).
type AdaptiveThreshold struct {
	noiseFloorDB float64
	emaAlpha     float64
	onsetDB      float64
	offsetDB     float64
}

// NewAdaptiveThreshold builds a threshold tracker. initialFloorDB seeds the
// EMA; onsetDB/offsetDB are added on top of the current floor to form the
// activation/deactivation thresholds.
func NewAdaptiveThreshold(initialFloorDB, emaAlpha, onsetDB, offsetDB float64) *AdaptiveThreshold {
	return &AdaptiveThreshold{
		noiseFloorDB: clamp(initialFloorDB, minNoiseFloorDB, maxNoiseFloorDB),
		emaAlpha:     emaAlpha,
		onsetDB:      onsetDB,
		offsetDB:     offsetDB,
	}
}

// Update folds one non-speech energy reading into the EMA. Readings while
// is_speech is true are ignored, per spec §4.4 ("updated only when not in
// Speech").
func (t *AdaptiveThreshold) Update(energyDB float64, isSpeech bool) {
	if isSpeech || energyDB <= minNoiseFloorDB || energyDB >= maxNoiseFloorDB {
		return
	}
	t.noiseFloorDB = (1-t.emaAlpha)*t.noiseFloorDB + t.emaAlpha*energyDB
	t.noiseFloorDB = clamp(t.noiseFloorDB, minNoiseFloorDB, maxNoiseFloorDB)
}

// OnsetThreshold returns the current speech-activation threshold.
func (t *AdaptiveThreshold) OnsetThreshold() float64 { return t.noiseFloorDB + t.onsetDB }

// OffsetThreshold returns the current speech-deactivation threshold.
func (t *AdaptiveThreshold) OffsetThreshold() float64 { return t.noiseFloorDB + t.offsetDB }

// CurrentFloor returns the tracked noise floor.
func (t *AdaptiveThreshold) CurrentFloor() float64 { return t.noiseFloorDB }

// ShouldActivate reports whether energyDB crosses into speech.
func (t *AdaptiveThreshold) ShouldActivate(energyDB float64) bool {
	return energyDB >= t.OnsetThreshold()
}

// ShouldDeactivate reports whether energyDB crosses back into silence.
func (t *AdaptiveThreshold) ShouldDeactivate(energyDB float64) bool {
	return energyDB < t.OffsetThreshold()
}

// Reset reseeds the noise floor.
func (t *AdaptiveThreshold) Reset(initialFloorDB float64) {
	t.noiseFloorDB = clamp(initialFloorDB, minNoiseFloorDB, maxNoiseFloorDB)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EnergyHysteresisConfig configures the EnergyHysteresis variant.
type EnergyHysteresisConfig struct {
	InitialFloorDB   float64
	EMAAlpha         float64
	OnsetDB          float64
	OffsetDB         float64
	MinSpeechMs      int
	MinSilenceMs     int
	RequiredRate     uint32
	RequiredFrameLen int
}

// DefaultEnergyHysteresisConfig matches spec §6's default VAD settings.
func DefaultEnergyHysteresisConfig() EnergyHysteresisConfig {
	return EnergyHysteresisConfig{
		InitialFloorDB:   -50,
		EMAAlpha:         0.05,
		OnsetDB:          9,
		OffsetDB:         6,
		MinSpeechMs:      100,
		MinSilenceMs:     200,
		RequiredRate:     audio.TargetSampleRate,
		RequiredFrameLen: audio.FrameSize,
	}
}

// EnergyHysteresis is the energy-based VAD Capability (spec §4.4): it scores
// each frame's RMS energy in dBFS against an adaptive noise floor and runs
// that through the shared hysteresis state machine.
type EnergyHysteresis struct {
	cfg       EnergyHysteresisConfig
	threshold *AdaptiveThreshold
	hys       *hysteresis
}

// NewEnergyHysteresis builds the energy-based VAD.
func NewEnergyHysteresis(cfg EnergyHysteresisConfig) *EnergyHysteresis {
	return &EnergyHysteresis{
		cfg:       cfg,
		threshold: NewAdaptiveThreshold(cfg.InitialFloorDB, cfg.EMAAlpha, cfg.OnsetDB, cfg.OffsetDB),
		hys:       newHysteresis(cfg.MinSpeechMs, cfg.MinSilenceMs),
	}
}

// Process implements Capability.
func (e *EnergyHysteresis) Process(frame audio.AudioFrame) (*Event, error) {
	if err := checkFrame(frame, e.cfg.RequiredRate, e.cfg.RequiredFrameLen); err != nil {
		return nil, err
	}

	energyDB := rmsDBFS(frame.Samples[:])
	isSpeech := e.hys.currentState() == Speech

	var candidate bool
	if isSpeech {
		candidate = !e.threshold.ShouldDeactivate(energyDB)
	} else {
		candidate = e.threshold.ShouldActivate(energyDB)
	}

	e.threshold.Update(energyDB, isSpeech)

	return e.hys.advance(candidate, frame.TimestampMs, energyDB), nil
}

// Reset implements Capability.
func (e *EnergyHysteresis) Reset() {
	e.hys.reset()
	e.threshold.Reset(e.cfg.InitialFloorDB)
}

// RequiredRate implements Capability.
func (e *EnergyHysteresis) RequiredRate() uint32 { return e.cfg.RequiredRate }

// RequiredFrameSize implements Capability.
func (e *EnergyHysteresis) RequiredFrameSize() int { return e.cfg.RequiredFrameLen }

// rmsDBFS computes the RMS energy of a block of int16 samples in dBFS
// relative to full scale.
func rmsDBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return minNoiseFloorDB
	}
	var sumSquares float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))
	if rms <= 0 {
		return minNoiseFloorDB
	}
	db := 20 * math.Log10(rms)
	return clamp(db, minNoiseFloorDB, 0)
}
