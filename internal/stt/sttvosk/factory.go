package sttvosk

import (
	"os"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/stt"
)

// Factory constructs Plugin instances bound to a fixed model directory.
type Factory struct {
	ModelPath string
}

// NewFactory builds a Factory for the Vosk model at modelPath.
func NewFactory(modelPath string) *Factory {
	return &Factory{ModelPath: modelPath}
}

// ID implements stt.Factory.
func (f *Factory) ID() string { return "vosk" }

// Create implements stt.Factory.
func (f *Factory) Create() (stt.Plugin, error) {
	return New(f.ModelPath), nil
}

// CheckRequirements implements stt.Factory: the model directory must
// exist before this plugin is eligible for selection (spec §4.5).
func (f *Factory) CheckRequirements() error {
	if f.ModelPath == "" {
		return apperr.New(apperr.STTConfigurationError, "sttvosk: no model_path configured")
	}
	if _, err := os.Stat(f.ModelPath); err != nil {
		return apperr.Wrapf(err, apperr.STTBackendUnavailable, "sttvosk: model not found at %s", f.ModelPath)
	}
	return nil
}

var _ stt.Factory = (*Factory)(nil)
