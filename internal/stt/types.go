// Package stt defines the speech-to-text plugin contract, the plugin
// manager that selects/fails-over/GCs concrete plugins, and the Unified
// STT Processor that bridges VAD events and audio frames into
// TranscriptionEvents (spec §4.5, §4.6).
package stt

import (
	"sync/atomic"

	"github.com/coldvox/engine/internal/config"
)

// utteranceIDCounter hands out process-wide monotonic utterance ids.
var utteranceIDCounter atomic.Uint64

// NextUtteranceID returns the next monotonic utterance id, starting at 1.
func NextUtteranceID() uint64 {
	return utteranceIDCounter.Add(1)
}

// EventKind discriminates the TranscriptionEvent variants.
type EventKind int

const (
	EventPartial EventKind = iota
	EventFinal
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// WordInfo carries word-level timing and confidence (spec §4.5).
type WordInfo struct {
	Start float32
	End   float32
	Conf  float32
	Text  string
}

// TranscriptionEvent is the processor's output unit. Only the fields
// relevant to Kind are populated; callers should switch on Kind.
type TranscriptionEvent struct {
	Kind        EventKind
	UtteranceID uint64

	// Partial/Final
	Text  string
	T0    *float32 // Partial only
	T1    *float32 // Partial only
	Words []WordInfo

	// Error
	Code    string
	Message string
}

// Partial builds an EventPartial.
func Partial(utteranceID uint64, text string, t0, t1 *float32) TranscriptionEvent {
	return TranscriptionEvent{Kind: EventPartial, UtteranceID: utteranceID, Text: text, T0: t0, T1: t1}
}

// Final builds an EventFinal.
func Final(utteranceID uint64, text string, words []WordInfo) TranscriptionEvent {
	return TranscriptionEvent{Kind: EventFinal, UtteranceID: utteranceID, Text: text, Words: words}
}

// ErrorEvent builds an EventError.
func ErrorEvent(code, message string) TranscriptionEvent {
	return TranscriptionEvent{Kind: EventError, Code: code, Message: message}
}

// TranscriptionConfig is what a Plugin.Initialize receives, derived from
// config.STTConfig plus the values the unified processor owns (mode is
// handled by the processor, not the plugin, per spec §4.6).
type TranscriptionConfig struct {
	ModelPath       string
	PartialResults  bool
	MaxAlternatives int
	IncludeWords    bool
	BufferSizeMs    int
	RequiredLanguage string
}

// DefaultTranscriptionConfig mirrors spec §4.5's plugin-facing defaults.
func DefaultTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		PartialResults:  true,
		MaxAlternatives: 1,
		IncludeWords:    false,
		BufferSizeMs:    512,
	}
}

// PluginInfo is returned by Plugin.Info() (spec §6).
type PluginInfo struct {
	ID                string
	Name              string
	RequiresNetwork   bool
	IsLocal           bool
	SupportedLanguages []string
	MemoryUsageMB     *int
}

// PluginCapabilities advertises what modes/features a plugin supports.
type PluginCapabilities struct {
	Streaming         bool
	Batch             bool
	WordTimestamps    bool
	ConfidenceScores  bool
	AutoPunctuation   bool
}

// Plugin is the polymorphic STT backend capability set (spec §6).
// process_audio/finalize return (nil, nil) when no event was produced.
type Plugin interface {
	Info() PluginInfo
	Capabilities() PluginCapabilities
	IsAvailable() (bool, error)
	Initialize(cfg TranscriptionConfig) error
	ProcessAudio(samples []int16) (*TranscriptionEvent, error)
	Finalize() (*TranscriptionEvent, error)
	Reset() error
	LoadModel(path string) error
	Unload() error
}

// Factory constructs Plugin instances and probes whether one could be
// constructed successfully without actually loading a model (spec §4.5:
// "Selection picks the first plugin ... that passes check_requirements()").
type Factory interface {
	ID() string
	Create() (Plugin, error)
	CheckRequirements() error
}

// transcriptionConfigFrom builds a plugin's TranscriptionConfig from the
// defaults, modelPath, and the engine's required-language setting.
func transcriptionConfigFrom(cfg config.STTConfig, modelPath string) TranscriptionConfig {
	tc := DefaultTranscriptionConfig()
	tc.ModelPath = modelPath
	tc.RequiredLanguage = cfg.RequiredLanguage
	return tc
}
