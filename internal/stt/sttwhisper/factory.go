package sttwhisper

import (
	"os"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/stt"
)

// Factory constructs Plugin instances bound to a fixed ggml model file.
type Factory struct {
	ModelPath string
}

// NewFactory builds a Factory for the whisper.cpp model at modelPath.
func NewFactory(modelPath string) *Factory {
	return &Factory{ModelPath: modelPath}
}

// ID implements stt.Factory.
func (f *Factory) ID() string { return "whisper" }

// Create implements stt.Factory.
func (f *Factory) Create() (stt.Plugin, error) {
	return New(f.ModelPath), nil
}

// CheckRequirements implements stt.Factory: the model file must exist.
func (f *Factory) CheckRequirements() error {
	if f.ModelPath == "" {
		return apperr.New(apperr.STTConfigurationError, "sttwhisper: no model_path configured")
	}
	if _, err := os.Stat(f.ModelPath); err != nil {
		return apperr.Wrapf(err, apperr.STTBackendUnavailable, "sttwhisper: model not found at %s", f.ModelPath)
	}
	return nil
}

var _ stt.Factory = (*Factory)(nil)
