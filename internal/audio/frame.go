package audio

// FrameSize is the fixed length, in samples, of every AudioFrame (spec §3).
const FrameSize = 512

// TargetSampleRate is the pipeline's canonical output rate; Capture and the
// Resampler both converge on this regardless of device-native rate.
const TargetSampleRate = 16000

// AudioFrame is an immutable, cheaply-shared window of exactly FrameSize
// signed 16-bit mono samples. Samples is never mutated after construction:
// downstream consumers (VAD, STT, Quality Monitor) receive the same backing
// array, not a copy.
type AudioFrame struct {
	Samples      [FrameSize]int16
	TimestampMs  uint64
	SampleRate   uint32
}

// NewAudioFrame builds a frame from a slice of exactly FrameSize samples.
// Callers (the Chunker) are responsible for the exact-size invariant; this
// constructor panics on mismatch since a frame of the wrong size is a
// programmer error, never a runtime condition.
func NewAudioFrame(samples []int16, timestampMs uint64, sampleRate uint32) AudioFrame {
	if len(samples) != FrameSize {
		panic("audio: NewAudioFrame requires exactly FrameSize samples")
	}
	var f AudioFrame
	copy(f.Samples[:], samples)
	f.TimestampMs = timestampMs
	f.SampleRate = sampleRate
	return f
}
