package stt

import (
	"context"
	"log/slog"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/audio"
	"github.com/coldvox/engine/internal/config"
	"github.com/coldvox/engine/internal/vad"
)

// processorState is the per-utterance lifecycle state (spec §4.6:
// Idle -> SpeechActive -> Idle).
type processorState int

const (
	stateIdle processorState = iota
	stateSpeechActive
)

const finalizeDeadline = 2 * time.Second

// utterance tracks the in-flight speech segment.
type utterance struct {
	id        uint64
	startedAt uint64 // frame-derived timestamp, from the SpeechStart event
	buffer    []int16
}

// Processor is the Unified STT Processor (spec §4.6): it bridges VAD
// events and audio frames into TranscriptionEvents via the active STT
// plugin, held exclusively (single-writer, spec §5) for the duration of
// each call.
type Processor struct {
	manager *Manager
	mode    config.STTMode

	state processorState
	utt   *utterance

	events chan TranscriptionEvent
}

// NewProcessor builds a Processor bound to manager, starting in the given
// mode (spec §6: stt.mode).
func NewProcessor(manager *Manager, initialMode config.STTMode) *Processor {
	return &Processor{
		manager: manager,
		mode:    initialMode,
		state:   stateIdle,
		events:  make(chan TranscriptionEvent, 32),
	}
}

// Events returns the channel TranscriptionEvents are published on. The
// channel is closed when Run returns.
func (p *Processor) Events() <-chan TranscriptionEvent { return p.events }

// Run drives the processor's event loop until ctx is cancelled. frames,
// vadEvents, and modeChanges are the processor's three inputs (spec
// §4.6); Run owns emitting to Events() and closes it on return.
func (p *Processor) Run(ctx context.Context, frames *audio.Subscription, vadEvents <-chan vad.Event, modeChanges <-chan config.STTMode) {
	defer close(p.events)
	defer p.shutdownFinalize()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-vadEvents:
			if !ok {
				return
			}
			p.handleVADEvent(ev)

		case m, ok := <-modeChanges:
			if !ok {
				continue
			}
			p.handleModeChange(m)

		case frame, ok := <-frames.Frames():
			if !ok {
				return
			}
			p.handleFrame(frame)
		}
	}
}

func (p *Processor) handleVADEvent(ev vad.Event) {
	switch ev.Kind {
	case vad.SpeechStart:
		p.state = stateSpeechActive
		p.utt = &utterance{id: NextUtteranceID(), startedAt: ev.TimestampMs}
		p.manager.BeginUtterance()
		slog.Debug("stt: utterance started", "utterance_id", p.utt.id)

	case vad.SpeechEnd:
		if p.state != stateSpeechActive || p.utt == nil {
			return
		}
		p.finalizeUtterance()
		p.state = stateIdle
		p.utt = nil
	}
}

// handleFrame forwards a frame while SpeechActive; frames between
// SpeechEnd and the next SpeechStart are discarded (spec §4.6).
func (p *Processor) handleFrame(frame audio.AudioFrame) {
	if p.state != stateSpeechActive || p.utt == nil {
		return
	}

	switch p.mode {
	case config.STTModeBatch:
		p.utt.buffer = append(p.utt.buffer, frame.Samples[:]...)
	default: // streaming
		event, err := p.manager.ProcessAudio(frame.Samples[:])
		p.emitPluginResult(event, err)
	}
}

func (p *Processor) finalizeUtterance() {
	if p.mode == config.STTModeBatch && len(p.utt.buffer) > 0 {
		event, err := p.manager.ProcessAudio(p.utt.buffer)
		p.emitPluginResult(event, err)
	}

	event, err := p.manager.Finalize()
	p.emitPluginResult(event, err)
}

// handleModeChange applies a Mode change. Mid-utterance, this is an
// interruption: the in-flight utterance is abandoned, the plugin is
// reset, and an error event is raised (spec §4.6). While Idle, the
// change is applied silently.
func (p *Processor) handleModeChange(m config.STTMode) {
	if p.mode == m {
		return
	}

	if p.state == stateSpeechActive {
		slog.Warn("stt: mode switch during active utterance", "utterance_id", p.utt.id, "from", p.mode, "to", m)
		p.emit(ErrorEvent("MODE_SWITCH_INTERRUPTION", "stt mode changed during active utterance"))
		if err := p.manager.Reset(); err != nil {
			slog.Warn("stt: plugin reset after mode switch failed", "error", err)
		}
		p.state = stateIdle
		p.utt = nil
	}
	p.mode = m
}

func (p *Processor) emitPluginResult(event *TranscriptionEvent, err error) {
	if err != nil {
		p.emit(ErrorEvent(errorCodeFor(err), err.Error()))
		return
	}
	if event != nil {
		if p.utt != nil {
			event.UtteranceID = p.utt.id
		}
		p.emit(*event)
	}
}

func (p *Processor) emit(event TranscriptionEvent) {
	select {
	case p.events <- event:
	default:
		slog.Warn("stt: event channel full, dropping event", "kind", event.Kind)
	}
}

// shutdownFinalize finalizes any in-flight utterance with a bounded
// best-effort call on shutdown (spec §4.6 / §5: 2s deadline).
func (p *Processor) shutdownFinalize() {
	if p.state != stateSpeechActive || p.utt == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.finalizeUtterance()
	}()

	select {
	case <-done:
	case <-time.After(finalizeDeadline):
		slog.Warn("stt: shutdown finalize timed out", "utterance_id", p.utt.id)
	}
}

func errorCodeFor(err error) string {
	if appErr, ok := err.(*apperr.AppError); ok {
		return appErr.Code.String()
	}
	return "STT_ERROR"
}
