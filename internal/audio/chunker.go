package audio

import (
	"context"
	"log/slog"
	"time"
)

// ChunkerConfig tunes the Chunker (spec §4.3).
type ChunkerConfig struct {
	FrameSizeSamples int
	SampleRateHz     uint32
}

// DefaultChunkerConfig matches the pipeline's canonical frame geometry.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{FrameSizeSamples: FrameSize, SampleRateHz: TargetSampleRate}
}

// FrameSource is anything the Chunker can pull arbitrary-sized sample runs
// from; Capture's frame reader satisfies this.
type FrameSource interface {
	// ReadSamples appends up to len(dst) samples and returns the count read.
	// Zero with a nil error means "nothing available right now".
	ReadSamples(dst []int16) (int, error)
}

// Chunker repackages arbitrary-sized reads into exact FrameSize AudioFrames
// and fans them out over a FrameBroadcaster (spec §4.3).
type Chunker struct {
	source FrameSource
	out    *FrameBroadcaster
	cfg    ChunkerConfig

	buffer         []int16
	samplesEmitted uint64

	noSubscriberLogged bool
}

// NewChunker builds a Chunker reading from source and broadcasting frames on
// out.
func NewChunker(source FrameSource, out *FrameBroadcaster, cfg ChunkerConfig) *Chunker {
	return &Chunker{
		source: source,
		out:    out,
		cfg:    cfg,
		buffer: make([]int16, 0, cfg.FrameSizeSamples*4),
	}
}

// Run pulls from source and emits frames until ctx is canceled.
func (c *Chunker) Run(ctx context.Context) {
	slog.Info("audio chunker started")
	defer slog.Info("audio chunker stopped")

	readBuf := make([]int16, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := c.source.ReadSamples(readBuf)
		if err != nil {
			slog.Warn("chunker read failed", "error", err)
			return
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}

		c.buffer = append(c.buffer, readBuf[:n]...)
		c.flushReadyFrames()
	}
}

// flushReadyFrames slices off every complete FrameSize window currently
// buffered and broadcasts it, advancing samplesEmitted so timestamps stay
// monotonic and frame-derived (spec §4.3 invariant ii).
func (c *Chunker) flushReadyFrames() {
	fs := c.cfg.FrameSizeSamples
	for len(c.buffer) >= fs {
		window := c.buffer[:fs]
		timestampMs := uint64(uint64(c.samplesEmitted) * 1000 / uint64(c.cfg.SampleRateHz))

		frame := NewAudioFrame(window, timestampMs, c.cfg.SampleRateHz)

		if !c.out.Send(frame) {
			if !c.noSubscriberLogged {
				slog.Warn("no active listeners for audio frames")
				c.noSubscriberLogged = true
			}
		} else {
			c.noSubscriberLogged = false
		}

		c.samplesEmitted += uint64(fs)
		c.buffer = c.buffer[fs:]
	}
}

// SamplesEmitted reports the running counter used for timestamp derivation
// and for the `|emitted - fed| <= FrameSize` invariant check in tests.
func (c *Chunker) SamplesEmitted() uint64 { return c.samplesEmitted }
