package vad

// frameDurationMs is the wall-clock span represented by one 512-sample
// frame at 16 kHz (spec §3: FrameSize=512, 16 kHz -> 32ms/frame).
const frameDurationMs = 32

// hysteresis implements the debounce state machine shared by every VAD
// variant (spec §4.4): N consecutive speech-candidate frames promote
// Silence->Speech, N consecutive non-candidate frames demote Speech-
// >Silence. Debounce durations are counted in frames, derived from the
// frame clock rather than wall-clock time, per spec §4.4's timestamp note.
type hysteresis struct {
	minSpeechFrames  int
	minSilenceFrames int

	state State

	candidateRun int // consecutive candidate=true frames while in Silence
	noncandidRun int // consecutive candidate=false frames while in Speech

	speechStartTimestampMs uint64
}

func newHysteresis(minSpeechMs, minSilenceMs int) *hysteresis {
	return &hysteresis{
		minSpeechFrames:  framesFor(minSpeechMs),
		minSilenceFrames: framesFor(minSilenceMs),
		state:            Silence,
	}
}

func framesFor(ms int) int {
	n := (ms + frameDurationMs - 1) / frameDurationMs
	if n < 1 {
		n = 1
	}
	return n
}

// advance feeds one frame's candidate boolean and energy reading into the
// state machine, returning at most one Event (spec §4.4).
func (h *hysteresis) advance(candidate bool, timestampMs uint64, energyDB float64) *Event {
	switch h.state {
	case Silence:
		if candidate {
			h.candidateRun++
			h.noncandidRun = 0
			if h.candidateRun >= h.minSpeechFrames {
				h.state = Speech
				h.candidateRun = 0
				// Anchor at the confirmation frame, not the first
				// candidate frame (spec §4.4: duration_ms is measured
				// between the emitted SpeechStart and the transition
				// point).
				h.speechStartTimestampMs = timestampMs
				return &Event{
					Kind:        SpeechStart,
					TimestampMs: h.speechStartTimestampMs,
					EnergyDB:    energyDB,
				}
			}
		} else {
			h.candidateRun = 0
		}
	case Speech:
		if !candidate {
			h.noncandidRun++
			h.candidateRun = 0
			if h.noncandidRun >= h.minSilenceFrames {
				h.state = Silence
				h.noncandidRun = 0
				duration := timestampMs - h.speechStartTimestampMs
				return &Event{
					Kind:        SpeechEnd,
					TimestampMs: timestampMs,
					DurationMs:  duration,
					EnergyDB:    energyDB,
				}
			}
		} else {
			h.noncandidRun = 0
		}
	}
	return nil
}

func (h *hysteresis) reset() {
	h.state = Silence
	h.candidateRun = 0
	h.noncandidRun = 0
	h.speechStartTimestampMs = 0
}

func (h *hysteresis) currentState() State { return h.state }
