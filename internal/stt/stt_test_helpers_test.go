package stt

import (
	"sync"
)

// mockPlugin is a minimal in-memory Plugin used across this package's tests.
type mockPlugin struct {
	mu sync.Mutex

	id             string
	available      bool
	initErr        error
	processAudioFn func(samples []int16) (*TranscriptionEvent, error)
	finalizeFn     func() (*TranscriptionEvent, error)

	initialized bool
	resetCount  int
	unloaded    bool
}

func (m *mockPlugin) Info() PluginInfo {
	return PluginInfo{ID: m.id, Name: m.id, IsLocal: true}
}

func (m *mockPlugin) Capabilities() PluginCapabilities {
	return PluginCapabilities{Streaming: true, Batch: true}
}

func (m *mockPlugin) IsAvailable() (bool, error) { return m.available, nil }

func (m *mockPlugin) Initialize(cfg TranscriptionConfig) error {
	if m.initErr != nil {
		return m.initErr
	}
	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

func (m *mockPlugin) ProcessAudio(samples []int16) (*TranscriptionEvent, error) {
	if m.processAudioFn != nil {
		return m.processAudioFn(samples)
	}
	return nil, nil
}

func (m *mockPlugin) Finalize() (*TranscriptionEvent, error) {
	if m.finalizeFn != nil {
		return m.finalizeFn()
	}
	ev := Final(0, "mock final", nil)
	return &ev, nil
}

func (m *mockPlugin) Reset() error {
	m.mu.Lock()
	m.resetCount++
	m.mu.Unlock()
	return nil
}

func (m *mockPlugin) LoadModel(path string) error { return nil }

func (m *mockPlugin) Unload() error {
	m.mu.Lock()
	m.unloaded = true
	m.initialized = false
	m.mu.Unlock()
	return nil
}

// mockFactory wraps a single mockPlugin instance (re-used across
// Create() calls, so tests can observe state after GC/failover).
type mockFactory struct {
	id           string
	plugin       *mockPlugin
	requireErr   error
	createCalled int
}

func newMockFactory(id string) *mockFactory {
	return &mockFactory{id: id, plugin: &mockPlugin{id: id, available: true}}
}

func (f *mockFactory) ID() string { return f.id }

func (f *mockFactory) Create() (Plugin, error) {
	f.createCalled++
	return f.plugin, nil
}

func (f *mockFactory) CheckRequirements() error { return f.requireErr }

var _ Plugin = (*mockPlugin)(nil)
var _ Factory = (*mockFactory)(nil)
