// Package sttvosk adapts the Vosk offline recognizer
// (github.com/alphacep/vosk-api/go) to the engine's stt.Plugin contract
// (spec §6, §4.5). Vosk supports true streaming recognition, so this is
// the default "preferred" plugin (spec §6: stt.preferred="vosk").
package sttvosk

import (
	"encoding/json"
	"os"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/stt"
)

func init() {
	// The Vosk C library logs verbosely to stderr by default; keep it
	// quiet unless VOSK_LOG_LEVEL is set, matching the engine's policy
	// of structured slog output only.
	if os.Getenv("VOSK_LOG_LEVEL") == "" {
		vosk.SetLogLevel(-1)
	}
}

// voskResult mirrors the subset of Vosk's JSON result schema this plugin
// consumes (partial text, final text, and optional word timings).
type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
	Result  []struct {
		Start float32 `json:"start"`
		End   float32 `json:"end"`
		Conf  float32 `json:"conf"`
		Word  string  `json:"word"`
	} `json:"result"`
}

// Plugin wraps one loaded Vosk model and recognizer.
type Plugin struct {
	defaultModelPath string
	modelPath        string
	model            *vosk.VoskModel
	recognizer       *vosk.VoskRecognizer
	includeWords     bool
}

// New constructs an unloaded Plugin bound to defaultModelPath, used when
// the manager's TranscriptionConfig doesn't carry a plugin-specific path.
func New(defaultModelPath string) *Plugin {
	return &Plugin{defaultModelPath: defaultModelPath}
}

// Info implements stt.Plugin.
func (p *Plugin) Info() stt.PluginInfo {
	return stt.PluginInfo{
		ID:                 "vosk",
		Name:               "Vosk",
		RequiresNetwork:    false,
		IsLocal:            true,
		SupportedLanguages: []string{"en-us"},
	}
}

// Capabilities implements stt.Plugin.
func (p *Plugin) Capabilities() stt.PluginCapabilities {
	return stt.PluginCapabilities{
		Streaming:        true,
		Batch:            true,
		WordTimestamps:   true,
		ConfidenceScores: true,
		AutoPunctuation:  false,
	}
}

// IsAvailable implements stt.Plugin.
func (p *Plugin) IsAvailable() (bool, error) {
	return p.recognizer != nil, nil
}

// Initialize implements stt.Plugin: loads the Vosk model directory and
// creates a 16 kHz recognizer.
func (p *Plugin) Initialize(cfg stt.TranscriptionConfig) error {
	modelPath := cfg.ModelPath
	if modelPath == "" {
		modelPath = p.defaultModelPath
	}
	if modelPath == "" {
		return apperr.New(apperr.STTConfigurationError, "sttvosk: model_path is required")
	}

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return apperr.Wrapf(err, apperr.STTModelLoadFailed, "loading vosk model at %s", modelPath)
	}

	rec, err := vosk.NewRecognizer(model, 16000.0)
	if err != nil {
		model.Free()
		return apperr.Wrap(err, apperr.STTModelLoadFailed, "creating vosk recognizer")
	}
	if cfg.IncludeWords {
		rec.SetWords(1)
	}

	p.modelPath = modelPath
	p.model = model
	p.recognizer = rec
	p.includeWords = cfg.IncludeWords
	return nil
}

// ProcessAudio implements stt.Plugin: feeds one frame of 16kHz mono
// S16LE PCM to the recognizer, emitting a Final event when Vosk signals
// an endpoint, else a Partial.
func (p *Plugin) ProcessAudio(samples []int16) (*stt.TranscriptionEvent, error) {
	if p.recognizer == nil {
		return nil, apperr.New(apperr.STTBackendUnavailable, "sttvosk: plugin not initialized")
	}

	pcm := int16ToBytes(samples)
	switch p.recognizer.AcceptWaveform(pcm) {
	case 1:
		return p.parseFinal(p.recognizer.Result())
	case 0:
		return p.parsePartial(p.recognizer.PartialResult())
	default:
		return nil, apperr.New(apperr.STTTransient, "sttvosk: AcceptWaveform failed")
	}
}

// Finalize implements stt.Plugin.
func (p *Plugin) Finalize() (*stt.TranscriptionEvent, error) {
	if p.recognizer == nil {
		return nil, apperr.New(apperr.STTBackendUnavailable, "sttvosk: plugin not initialized")
	}
	return p.parseFinal(p.recognizer.FinalResult())
}

func (p *Plugin) parsePartial(raw string) (*stt.TranscriptionEvent, error) {
	var r voskResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, apperr.Wrap(err, apperr.STTTransient, "sttvosk: decoding partial result")
	}
	if r.Partial == "" {
		return nil, nil
	}
	ev := stt.Partial(0, r.Partial, nil, nil)
	return &ev, nil
}

func (p *Plugin) parseFinal(raw string) (*stt.TranscriptionEvent, error) {
	var r voskResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, apperr.Wrap(err, apperr.STTTransient, "sttvosk: decoding final result")
	}
	if r.Text == "" {
		return nil, nil
	}

	var words []stt.WordInfo
	if p.includeWords {
		for _, w := range r.Result {
			words = append(words, stt.WordInfo{Start: w.Start, End: w.End, Conf: w.Conf, Text: w.Word})
		}
	}
	ev := stt.Final(0, r.Text, words)
	return &ev, nil
}

// Reset implements stt.Plugin: discards recognizer state for the next
// utterance without reloading the model.
func (p *Plugin) Reset() error {
	if p.recognizer == nil {
		return apperr.New(apperr.STTBackendUnavailable, "sttvosk: plugin not initialized")
	}
	p.recognizer.Reset()
	return nil
}

// LoadModel implements stt.Plugin: (re)loads a model path, replacing any
// currently loaded model/recognizer.
func (p *Plugin) LoadModel(path string) error {
	if path == "" {
		path = p.modelPath
	}
	return p.Initialize(stt.TranscriptionConfig{ModelPath: path, IncludeWords: p.includeWords})
}

// Unload implements stt.Plugin: releases the Vosk model and recognizer
// (spec §4.5 GC), keeping the factory available for re-instantiation.
func (p *Plugin) Unload() error {
	if p.recognizer == nil {
		return apperr.New(apperr.STTBackendUnavailable, "sttvosk: already unloaded")
	}
	p.recognizer.Free()
	p.model.Free()
	p.recognizer = nil
	p.model = nil
	return nil
}

func int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	return buf
}

var _ stt.Plugin = (*Plugin)(nil)
