package stt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/config"
	"github.com/coldvox/engine/internal/resilience"
	"github.com/coldvox/engine/internal/syncx"
)

// slot tracks one registered plugin's lifecycle: its factory (always kept,
// so the plugin can be re-instantiated after GC unload), the live instance
// (nil when unloaded), and bookkeeping for failover/GC.
type slot struct {
	factory  Factory
	plugin   Plugin
	lastUsed time.Time
	breaker  *resilience.Breaker
}

// Manager implements the STT Plugin Manager (spec §4.5): it enumerates
// registered factories in selection order (preferred, then fallbacks),
// keeps exactly one active plugin, and transparently fails over to the
// next candidate when the active plugin accumulates failover-worthy
// errors. Idle plugins are unloaded (but not forgotten) past their GC
// model TTL.
type Manager struct {
	cfg   config.STTConfig
	order []string // selection order: preferred, then fallbacks[0..]

	mu    sync.Mutex
	slots map[string]*slot

	active *syncx.RWGuard[string]

	// replayBuffer accumulates every sample handed to the active plugin
	// for the current utterance, so a mid-utterance failover (spec
	// §4.5) can hand the newly promoted plugin the audio it missed
	// instead of starting it cold. Reset at BeginUtterance.
	replayBuffer []int16
}

// NewManager registers factories (order matters only as a fallback; the
// configured preferred/fallback list governs actual selection order) and
// returns an unstarted Manager.
func NewManager(cfg config.STTConfig, factories ...Factory) *Manager {
	slots := make(map[string]*slot, len(factories))
	for _, f := range factories {
		slots[f.ID()] = &slot{
			factory: f,
			breaker: resilience.New(resilience.Config{
				Threshold:         cfg.Failover.Threshold,
				ResetTimeout:      cfg.Failover.Cooldown(),
				MaxBackoff:        cfg.Failover.Cooldown(),
				FailureWindow:     cfg.Failover.Cooldown(),
				HalfOpenSuccesses: 1,
			}),
		}
	}

	order := make([]string, 0, 1+len(cfg.Fallbacks))
	if cfg.Preferred != "" {
		order = append(order, cfg.Preferred)
	}
	order = append(order, cfg.Fallbacks...)

	return &Manager{
		cfg:    cfg,
		order:  order,
		slots:  slots,
		active: syncx.NewGuard(""),
	}
}

// Start selects and initializes the first candidate, in configured order,
// whose factory passes CheckRequirements (spec §4.5).
func (m *Manager) Start() error {
	for _, id := range m.order {
		s, ok := m.slots[id]
		if !ok {
			slog.Warn("stt: configured plugin not registered", "id", id)
			continue
		}
		if err := s.factory.CheckRequirements(); err != nil {
			slog.Info("stt: plugin failed requirements probe", "id", id, "error", err)
			continue
		}
		if err := m.activate(s); err != nil {
			slog.Warn("stt: plugin failed to initialize", "id", id, "error", err)
			continue
		}
		m.active.Set(id)
		slog.Info("stt: activated plugin", "id", id)
		return nil
	}
	return apperr.New(apperr.STTBackendUnavailable, "no registered STT plugin passed requirements")
}

func (m *Manager) activate(s *slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.plugin == nil {
		p, err := s.factory.Create()
		if err != nil {
			return apperr.Wrap(err, apperr.STTModelLoadFailed, "constructing plugin")
		}
		s.plugin = p
	}

	if m.cfg.RequireLocal && s.plugin.Info().RequiresNetwork {
		return apperr.Newf(apperr.STTConfigurationError, "plugin %s requires network but stt.require_local is set", s.plugin.Info().ID)
	}

	tc := transcriptionConfigFrom(m.cfg, "")
	if err := s.plugin.Initialize(tc); err != nil {
		return err
	}
	s.lastUsed = time.Now()
	return nil
}

// BeginUtterance clears the failover replay buffer for a new utterance.
// The Processor calls this on every SpeechStart (spec §4.6).
func (m *Manager) BeginUtterance() {
	m.mu.Lock()
	m.replayBuffer = m.replayBuffer[:0]
	m.mu.Unlock()
}

func (m *Manager) clearReplayBuffer() {
	m.mu.Lock()
	m.replayBuffer = m.replayBuffer[:0]
	m.mu.Unlock()
}

// ActiveID returns the currently selected plugin's id, or "" if none.
func (m *Manager) ActiveID() string { return m.active.Get() }

func (m *Manager) activeSlot() (*slot, error) {
	id := m.active.Get()
	if id == "" {
		return nil, apperr.New(apperr.STTBackendUnavailable, "no active STT plugin")
	}
	m.mu.Lock()
	s := m.slots[id]
	m.mu.Unlock()
	if s == nil || s.plugin == nil {
		return nil, apperr.New(apperr.STTBackendUnavailable, "active STT plugin not loaded")
	}
	return s, nil
}

// ProcessAudio forwards samples to the active plugin, retrying in place
// for Transient/DecodeTimeout errors and failing over for
// BackendUnavailable/ModelLoadFailed (spec §4.5).
func (m *Manager) ProcessAudio(samples []int16) (*TranscriptionEvent, error) {
	s, err := m.activeSlot()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.replayBuffer = append(m.replayBuffer, samples...)
	m.mu.Unlock()

	var event *TranscriptionEvent
	callErr := resilience.Retry(context.Background(), resilience.STTRetryConfig(), func() error {
		var e error
		event, e = s.plugin.ProcessAudio(samples)
		return e
	})
	s.lastUsed = time.Now()
	return m.handleCallResult(s, event, callErr)
}

// Finalize asks the active plugin to finalize the in-flight utterance,
// applying the same retry/failover policy as ProcessAudio.
func (m *Manager) Finalize() (*TranscriptionEvent, error) {
	s, err := m.activeSlot()
	if err != nil {
		return nil, err
	}

	var event *TranscriptionEvent
	callErr := resilience.Retry(context.Background(), resilience.STTRetryConfig(), func() error {
		var e error
		event, e = s.plugin.Finalize()
		return e
	})
	s.lastUsed = time.Now()
	result, handleErr := m.handleCallResult(s, event, callErr)
	if handleErr == nil {
		m.clearReplayBuffer()
	}
	return result, handleErr
}

// handleCallResult records the call outcome on s's breaker and, once the
// breaker trips open (cfg.Failover.Threshold consecutive failover-worthy
// errors within failover_cooldown, spec §4.5), fails over to the next
// eligible candidate.
func (m *Manager) handleCallResult(s *slot, event *TranscriptionEvent, callErr error) (*TranscriptionEvent, error) {
	if callErr == nil {
		s.breaker.Success()
		return event, nil
	}

	if apperr.IsFailoverWorthy(callErr) {
		s.breaker.Failure()
		if s.breaker.State() == resilience.Open {
			if ferr := m.failover(s, callErr); ferr != nil {
				return nil, ferr
			}
			return nil, apperr.Wrap(callErr, apperr.STTBackendUnavailable, "failed over after repeated errors")
		}
	}
	return nil, callErr
}

// failover promotes the next eligible candidate in configured order once
// s's breaker has opened (spec §4.5: "removed from the active slot ...
// for failover_cooldown"). A candidate whose own breaker is open (still
// serving its backoff from a prior failure) is skipped.
func (m *Manager) failover(s *slot, cause error) error {
	slog.Warn("stt: breaker opened after failover-worthy errors", "cooldown", m.cfg.Failover.Cooldown(), "cause", cause)

	for _, id := range m.order {
		if id == "" {
			continue
		}
		candidate, ok := m.slots[id]
		if !ok || candidate == s || candidate.breaker.Allow() != nil {
			continue
		}
		if err := candidate.factory.CheckRequirements(); err != nil {
			continue
		}
		if err := m.activate(candidate); err != nil {
			slog.Warn("stt: failover candidate failed to initialize", "id", id, "error", err)
			continue
		}
		m.active.Set(id)
		m.replayTo(candidate)
		slog.Info("stt: failed over to plugin", "id", id)
		return nil
	}
	return apperr.New(apperr.STTBackendUnavailable, "no failover candidate available")
}

// replayTo feeds the current utterance's accumulated audio to a newly
// promoted plugin, so it picks up mid-utterance rather than starting
// cold (spec §4.5).
func (m *Manager) replayTo(s *slot) {
	m.mu.Lock()
	buf := append([]int16(nil), m.replayBuffer...)
	m.mu.Unlock()

	if len(buf) == 0 {
		return
	}
	if _, err := s.plugin.ProcessAudio(buf); err != nil {
		slog.Warn("stt: failover replay failed", "id", s.factory.ID(), "error", err)
	}
}

// Reset resets the active plugin's in-progress utterance state.
func (m *Manager) Reset() error {
	m.clearReplayBuffer()
	s, err := m.activeSlot()
	if err != nil {
		return nil // nothing active; reset is a no-op
	}
	return s.plugin.Reset()
}

// RunGC unloads plugins whose last use exceeds the configured model TTL,
// keeping their factories for re-instantiation (spec §4.5). Intended to
// run as a background loop; returns when ctx is done.
func (m *Manager) RunGC(ctx context.Context) {
	if !m.cfg.GC.Enabled {
		return
	}
	ttl := time.Duration(m.cfg.GC.ModelTTLSec) * time.Second
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.gcSweep(ttl)
		}
	}
}

func (m *Manager) gcSweep(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activeID := m.active.Get()
	now := time.Now()
	for id, s := range m.slots {
		if id == activeID || s.plugin == nil {
			continue
		}
		if now.Sub(s.lastUsed) > ttl {
			if err := s.plugin.Unload(); err != nil {
				slog.Warn("stt: idle plugin unload failed", "id", id, "error", err)
				continue
			}
			s.plugin = nil
			slog.Info("stt: unloaded idle plugin", "id", id, "idle_for", now.Sub(s.lastUsed))
		}
	}
}

// String renders a diagnostic summary, e.g. for health snapshots.
func (m *Manager) String() string {
	return fmt.Sprintf("Manager{active=%q registered=%d}", m.active.Get(), len(m.slots))
}
