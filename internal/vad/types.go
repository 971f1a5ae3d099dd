// Package vad implements the VAD capability set: per-frame speech scoring
// plus the hysteresis state machine that turns scores into debounced
// SpeechStart/SpeechEnd events (spec §4.4).
package vad

import (
	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/audio"
)

// State is one of Silence or Speech (spec §3 VadState).
type State int

const (
	Silence State = iota
	Speech
)

func (s State) String() string {
	if s == Speech {
		return "speech"
	}
	return "silence"
}

// EventKind tags a VadEvent variant.
type EventKind int

const (
	SpeechStart EventKind = iota
	SpeechEnd
)

// Event is the tagged VadEvent variant (spec §3).
type Event struct {
	Kind        EventKind
	TimestampMs uint64
	EnergyDB    float64
	DurationMs  uint64 // only set for SpeechEnd
}

// Capability is the polymorphic VAD contract (spec §4.4): process one frame
// at a time, emitting at most one event, with an explicit reset and static
// format requirements.
type Capability interface {
	Process(frame audio.AudioFrame) (*Event, error)
	Reset()
	RequiredRate() uint32
	RequiredFrameSize() int
}

// checkFrame validates the format invariants shared by every Capability
// implementation; a mismatch is a programmer error, not a runtime condition
// (spec §4.4 Failure semantics).
func checkFrame(frame audio.AudioFrame, requiredRate uint32, requiredSize int) error {
	if len(frame.Samples) != requiredSize {
		return apperr.Newf(apperr.VADInvalidFrameSize, "expected %d samples, got %d", requiredSize, len(frame.Samples))
	}
	if frame.SampleRate != 0 && frame.SampleRate != requiredRate {
		return apperr.Newf(apperr.VADInvalidFrameSize, "expected %d Hz frames, got %d Hz", requiredRate, frame.SampleRate)
	}
	return nil
}
