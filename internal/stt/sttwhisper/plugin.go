// Package sttwhisper adapts whisper.cpp
// (github.com/ggerganov/whisper.cpp/bindings/go) to the engine's
// stt.Plugin contract. whisper.cpp only exposes full-buffer transcription,
// so this plugin is batch-only (spec §4.5/§4.6: a fallback behind a
// streaming-capable preferred plugin).
package sttwhisper

import (
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/stt"
)

// Plugin wraps one loaded whisper.cpp model. process_audio only
// accumulates samples; the actual decode happens in finalize.
type Plugin struct {
	defaultModelPath string

	mu     sync.Mutex
	model  whisper.Model
	buffer []float32
}

// New constructs an unloaded Plugin bound to defaultModelPath.
func New(defaultModelPath string) *Plugin {
	return &Plugin{defaultModelPath: defaultModelPath}
}

// Info implements stt.Plugin.
func (p *Plugin) Info() stt.PluginInfo {
	return stt.PluginInfo{
		ID:                 "whisper",
		Name:               "Whisper",
		RequiresNetwork:    false,
		IsLocal:            true,
		SupportedLanguages: []string{"en"},
	}
}

// Capabilities implements stt.Plugin.
func (p *Plugin) Capabilities() stt.PluginCapabilities {
	return stt.PluginCapabilities{
		Streaming:        false,
		Batch:            true,
		WordTimestamps:   true,
		ConfidenceScores: false,
		AutoPunctuation:  true,
	}
}

// IsAvailable implements stt.Plugin.
func (p *Plugin) IsAvailable() (bool, error) {
	return p.model != nil, nil
}

// Initialize implements stt.Plugin: loads the ggml model file.
func (p *Plugin) Initialize(cfg stt.TranscriptionConfig) error {
	modelPath := cfg.ModelPath
	if modelPath == "" {
		modelPath = p.defaultModelPath
	}
	if modelPath == "" {
		return apperr.New(apperr.STTConfigurationError, "sttwhisper: model_path is required")
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return apperr.Wrapf(err, apperr.STTModelLoadFailed, "loading whisper model at %s", modelPath)
	}

	p.mu.Lock()
	p.model = model
	p.buffer = p.buffer[:0]
	p.mu.Unlock()
	return nil
}

// ProcessAudio implements stt.Plugin: whisper.cpp has no incremental
// streaming API, so frames are accumulated for the eventual Finalize call
// (spec §4.6 batch mode); this never emits a Partial event.
func (p *Plugin) ProcessAudio(samples []int16) (*stt.TranscriptionEvent, error) {
	if p.model == nil {
		return nil, apperr.New(apperr.STTBackendUnavailable, "sttwhisper: plugin not initialized")
	}

	p.mu.Lock()
	for _, s := range samples {
		p.buffer = append(p.buffer, float32(s)/32768.0)
	}
	p.mu.Unlock()
	return nil, nil
}

// Finalize implements stt.Plugin: runs the accumulated buffer through a
// fresh transcription context and returns the joined segment text.
func (p *Plugin) Finalize() (*stt.TranscriptionEvent, error) {
	if p.model == nil {
		return nil, apperr.New(apperr.STTBackendUnavailable, "sttwhisper: plugin not initialized")
	}

	p.mu.Lock()
	samples := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	if len(samples) == 0 {
		return nil, nil
	}

	ctx, err := p.model.NewContext()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.STTTransient, "sttwhisper: creating context")
	}

	if err := ctx.Process(samples, nil, nil); err != nil {
		return nil, apperr.Wrap(err, apperr.STTTransient, "sttwhisper: processing audio")
	}

	var b strings.Builder
	var words []stt.WordInfo
	for {
		seg, err := ctx.NextSegment()
		if err != nil {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(seg.Text))
		words = append(words, stt.WordInfo{
			Start: float32(seg.Start.Seconds()),
			End:   float32(seg.End.Seconds()),
			Conf:  1.0,
			Text:  seg.Text,
		})
	}

	text := b.String()
	if text == "" {
		return nil, nil
	}
	ev := stt.Final(0, text, words)
	return &ev, nil
}

// Reset implements stt.Plugin: drops any accumulated, not-yet-finalized
// audio.
func (p *Plugin) Reset() error {
	p.mu.Lock()
	p.buffer = p.buffer[:0]
	p.mu.Unlock()
	return nil
}

// LoadModel implements stt.Plugin.
func (p *Plugin) LoadModel(path string) error {
	return p.Initialize(stt.TranscriptionConfig{ModelPath: path})
}

// Unload implements stt.Plugin: releases the whisper.cpp model (spec
// §4.5 GC).
func (p *Plugin) Unload() error {
	if p.model == nil {
		return apperr.New(apperr.STTBackendUnavailable, "sttwhisper: already unloaded")
	}
	p.model.Close()
	p.model = nil
	return nil
}

var _ stt.Plugin = (*Plugin)(nil)
