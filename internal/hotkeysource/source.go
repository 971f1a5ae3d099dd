package hotkeysource

import (
	"context"
	"log/slog"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/vad"
)

// Source drives a push-to-talk Handle and republishes its press/release
// edges as vad.Events, bypassing §4.4's hysteresis state machine entirely.
type Source struct {
	handle Handle
	out    Events
	epoch  time.Time
}

// New builds a Source over handle, publishing onto a freshly made, 8-deep
// event channel (the same backpressure shape §4.4's own event channel uses).
func New(handle Handle) *Source {
	return &Source{handle: handle, out: make(Events, 8), epoch: time.Now()}
}

// Events returns the channel Run publishes SpeechStart/SpeechEnd onto.
func (s *Source) Events() <-chan vad.Event { return s.out }

// Run registers the hotkey and republishes its edges until ctx is canceled,
// then unregisters and closes the event channel.
func (s *Source) Run(ctx context.Context) error {
	if err := s.handle.Register(); err != nil {
		return apperr.Wrap(err, apperr.Unknown, "hotkeysource: register")
	}
	defer func() {
		if err := s.handle.Unregister(); err != nil {
			slog.Warn("hotkeysource: unregister failed", "error", err)
		}
	}()
	defer close(s.out)

	var pressedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-s.handle.Keydown():
			if !ok {
				return nil
			}
			pressedAt = time.Now()
			s.publish(ctx, vad.Event{Kind: vad.SpeechStart, TimestampMs: s.elapsedMs(pressedAt)})
		case _, ok := <-s.handle.Keyup():
			if !ok {
				return nil
			}
			released := time.Now()
			var durationMs uint64
			if !pressedAt.IsZero() {
				durationMs = uint64(released.Sub(pressedAt).Milliseconds())
			}
			s.publish(ctx, vad.Event{Kind: vad.SpeechEnd, TimestampMs: s.elapsedMs(released), DurationMs: durationMs})
		}
	}
}

func (s *Source) elapsedMs(at time.Time) uint64 {
	return uint64(at.Sub(s.epoch).Milliseconds())
}

func (s *Source) publish(ctx context.Context, ev vad.Event) {
	select {
	case s.out <- ev:
	case <-ctx.Done():
	}
}
