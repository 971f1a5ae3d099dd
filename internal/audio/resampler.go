package audio

import "math"

// Resampler is a streaming linear-interpolation resampler for mono int16
// audio (spec §4.2). It maintains an input accumulator so callers can feed
// arbitrary-sized chunks and a fractional read phase so interpolation state
// survives across calls.
type Resampler struct {
	inRate  uint32
	outRate uint32
	inc     float64

	acc   []int16
	phase float64

	maxAcc int
}

// NewResampler builds a resampler converting inRate to outRate.
func NewResampler(inRate, outRate uint32) *Resampler {
	bound := inRate
	if outRate > bound {
		bound = outRate
	}
	return &Resampler{
		inRate:  inRate,
		outRate: outRate,
		inc:     float64(inRate) / float64(outRate),
		acc:     make([]int16, 0, bound),
		maxAcc:  2 * int(bound),
	}
}

// InputRate returns the configured input rate.
func (r *Resampler) InputRate() uint32 { return r.inRate }

// OutputRate returns the configured output rate.
func (r *Resampler) OutputRate() uint32 { return r.outRate }

// Process converts an arbitrary chunk of mono int16 input into resampled
// output at outRate. When inRate == outRate this is a pure passthrough copy.
func (r *Resampler) Process(input []int16) []int16 {
	if r.inRate == r.outRate {
		out := make([]int16, len(input))
		copy(out, input)
		return out
	}

	r.acc = append(r.acc, input...)
	r.dropOverflow()

	maxOut := 0
	if room := float64(len(r.acc)) - r.phase; room > 0 {
		maxOut = int(room / r.inc)
	}
	out := make([]int16, 0, maxOut)

	for r.phase+1.0 < float64(len(r.acc)) {
		idx := int(r.phase)
		frac := r.phase - float64(idx)

		s0 := float64(r.acc[idx])
		s1 := float64(r.acc[idx+1])
		sample := s0*(1-frac) + s1*frac

		out = append(out, saturateInt16(math.Round(sample)))
		r.phase += r.inc
	}

	consumed := int(r.phase)
	if consumed > len(r.acc) {
		consumed = len(r.acc)
	}
	if consumed > 0 {
		r.acc = r.acc[consumed:]
		r.phase -= float64(consumed)
	}

	return out
}

// dropOverflow trims the oldest accumulated samples once the accumulator
// exceeds its bound (2 * max(inRate, outRate)), per spec §4.2's bounded
// memory invariant. The read phase is shifted by the same amount, never
// below zero, so interpolation resumes at the oldest sample kept.
func (r *Resampler) dropOverflow() {
	if len(r.acc) <= r.maxAcc {
		return
	}
	excess := len(r.acc) - r.maxAcc
	r.acc = r.acc[excess:]
	r.phase -= float64(excess)
	if r.phase < 0 {
		r.phase = 0
	}
}

// Reset clears accumulator and phase state.
func (r *Resampler) Reset() {
	r.acc = r.acc[:0]
	r.phase = 0
}

func saturateInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
