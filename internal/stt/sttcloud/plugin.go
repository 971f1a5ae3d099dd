// Package sttcloud implements an optional network STT plugin spoken over
// plain JSON-over-HTTP. It is the one cross-process STT boundary this
// engine has; it is still subject to the same require_local gate as any
// other plugin (spec §4.5/§6: "require_local forbids network plugins").
package sttcloud

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/stt"
)

const requestTimeout = 5 * time.Second

// requestBody is the wire schema sent to the cloud endpoint: the sample
// rate, base64 PCM16 samples, and a finalize flag (the server is expected
// to return an updated partial/final transcript).
type requestBody struct {
	SampleRateHz int    `json:"sample_rate_hz"`
	PCM16Base64  string `json:"pcm16_base64"`
	Finalize     bool   `json:"finalize"`
}

type responseBody struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
	Error string `json:"error,omitempty"`
}

// Plugin talks to a cloud transcription endpoint over HTTP.
type Plugin struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Plugin pointed at endpoint, authenticating with apiKey
// (sent as a Bearer token).
func New(endpoint, apiKey string) *Plugin {
	return &Plugin{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Info implements stt.Plugin.
func (p *Plugin) Info() stt.PluginInfo {
	return stt.PluginInfo{
		ID:              "cloud",
		Name:            "Cloud STT",
		RequiresNetwork: true,
		IsLocal:         false,
	}
}

// Capabilities implements stt.Plugin.
func (p *Plugin) Capabilities() stt.PluginCapabilities {
	return stt.PluginCapabilities{Streaming: true, Batch: true, ConfidenceScores: false}
}

// IsAvailable implements stt.Plugin: a lightweight reachability probe.
func (p *Plugin) IsAvailable() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/health", nil)
	if err != nil {
		return false, nil
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Initialize implements stt.Plugin; the cloud plugin has no local model
// to load, so this only validates configuration.
func (p *Plugin) Initialize(cfg stt.TranscriptionConfig) error {
	if p.endpoint == "" {
		return apperr.New(apperr.STTConfigurationError, "sttcloud: no endpoint configured")
	}
	return nil
}

// ProcessAudio implements stt.Plugin: posts one frame for incremental
// (non-final) transcription.
func (p *Plugin) ProcessAudio(samples []int16) (*stt.TranscriptionEvent, error) {
	return p.call(samples, false)
}

// Finalize implements stt.Plugin.
func (p *Plugin) Finalize() (*stt.TranscriptionEvent, error) {
	return p.call(nil, true)
}

func (p *Plugin) call(samples []int16, finalize bool) (*stt.TranscriptionEvent, error) {
	body := requestBody{
		SampleRateHz: 16000,
		PCM16Base64:  base64.StdEncoding.EncodeToString(int16ToBytes(samples)),
		Finalize:     finalize,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.STTConfigurationError, "sttcloud: encoding request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/transcribe", bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.STTTransient, "sttcloud: building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.STTBackendUnavailable, "sttcloud: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
		return nil, apperr.New(apperr.STTDecodeTimeout, "sttcloud: upstream timeout")
	}
	if resp.StatusCode >= 500 {
		return nil, apperr.Newf(apperr.STTBackendUnavailable, "sttcloud: upstream returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.Newf(apperr.STTConfigurationError, "sttcloud: upstream rejected request with %d", resp.StatusCode)
	}

	var rb responseBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, apperr.Wrap(err, apperr.STTTransient, "sttcloud: decoding response")
	}
	if rb.Error != "" {
		return nil, apperr.New(apperr.STTTransient, rb.Error)
	}
	if rb.Text == "" {
		return nil, nil
	}

	if rb.Final {
		ev := stt.Final(0, rb.Text, nil)
		return &ev, nil
	}
	ev := stt.Partial(0, rb.Text, nil, nil)
	return &ev, nil
}

// Reset implements stt.Plugin; the cloud endpoint is stateless per call
// from this plugin's perspective.
func (p *Plugin) Reset() error { return nil }

// LoadModel implements stt.Plugin; the cloud plugin has no local model.
func (p *Plugin) LoadModel(path string) error { return nil }

// Unload implements stt.Plugin; nothing local to release.
func (p *Plugin) Unload() error { return nil }

func int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	return buf
}

var _ stt.Plugin = (*Plugin)(nil)
