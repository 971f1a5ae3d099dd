package sttcloud

import (
	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/stt"
)

// Factory constructs Plugin instances bound to a fixed cloud endpoint.
type Factory struct {
	Endpoint string
	APIKey   string
}

// NewFactory builds a Factory for a cloud STT endpoint.
func NewFactory(endpoint, apiKey string) *Factory {
	return &Factory{Endpoint: endpoint, APIKey: apiKey}
}

// ID implements stt.Factory.
func (f *Factory) ID() string { return "cloud" }

// Create implements stt.Factory.
func (f *Factory) Create() (stt.Plugin, error) {
	return New(f.Endpoint, f.APIKey), nil
}

// CheckRequirements implements stt.Factory: the endpoint must be
// reachable. The caller's stt.require_local setting is enforced by the
// manager via Plugin.Info().RequiresNetwork, not here.
func (f *Factory) CheckRequirements() error {
	if f.Endpoint == "" {
		return apperr.New(apperr.STTConfigurationError, "sttcloud: no endpoint configured")
	}
	p := New(f.Endpoint, f.APIKey)
	ok, _ := p.IsAvailable()
	if !ok {
		return apperr.Newf(apperr.STTBackendUnavailable, "sttcloud: endpoint %s unreachable", f.Endpoint)
	}
	return nil
}

var _ stt.Factory = (*Factory)(nil)
