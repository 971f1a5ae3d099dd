package injection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvox/engine/internal/config"
)

type fixedAppID struct{ id string }

func (f fixedAppID) ActiveAppID(context.Context) (string, error) { return f.id, nil }

type fixedFocus struct{ status FocusStatus }

func (f fixedFocus) FocusStatus(context.Context) (FocusStatus, error) { return f.status, nil }

type fakeBackend struct {
	method  Method
	fail    error
	calls   int
	onCall  func(text string)
}

func (b *fakeBackend) Name() Method                             { return b.method }
func (b *fakeBackend) IsAvailable(context.Context) bool          { return true }
func (b *fakeBackend) Info() string                              { return "fake" }
func (b *fakeBackend) Inject(ctx context.Context, text string) error {
	b.calls++
	if b.onCall != nil {
		b.onCall(text)
	}
	return b.fail
}

func testProber(state ProbeState) *Prober {
	return &Prober{
		accessibilityCheck:    func(context.Context) bool { return state.Accessibility },
		clipboardWaylandCheck: func(context.Context) bool { return state.ClipboardWayland },
		clipboardX11Check:     func(context.Context) bool { return state.ClipboardX11 },
		keystrokeCheck:        func(context.Context) bool { return state.KeystrokeDaemon },
	}
}

func newTestManager(t *testing.T, cfg config.InjectionConfig, probeState ProbeState, backends map[Method]Backend, focusStatus FocusStatus) *Manager {
	t.Helper()
	focus := NewFocusTracker(fixedFocus{status: focusStatus}, 0)
	return NewManager(cfg, fixedAppID{id: "editor"}, focus, testProber(probeState), backends)
}

// TestManager_FallsBackOnFirstFailure is spec §8 scenario 4.
func TestManager_FallsBackOnFirstFailure(t *testing.T) {
	cfg := config.Default().Injection
	a11y := &fakeBackend{method: AccessibilityInsert, fail: assertErr("no editable focus")}
	clip := &fakeBackend{method: ClipboardAndPaste}

	backends := map[Method]Backend{AccessibilityInsert: a11y, ClipboardAndPaste: clip}
	probeState := ProbeState{Accessibility: true, ClipboardWayland: true}

	m := newTestManager(t, cfg, probeState, backends, EditableText)

	result, err := m.Inject(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, ClipboardAndPaste, result.Method)
	assert.Equal(t, 1, a11y.calls)
	assert.Equal(t, 1, clip.calls)
	assert.True(t, m.History().InCooldown("editor", AccessibilityInsert, time.Now()))
	assert.False(t, m.History().InCooldown("editor", ClipboardAndPaste, time.Now()))
}

func TestManager_AllMethodsFail(t *testing.T) {
	cfg := config.Default().Injection
	a11y := &fakeBackend{method: AccessibilityInsert, fail: assertErr("fail")}
	clip := &fakeBackend{method: ClipboardAndPaste, fail: assertErr("fail")}
	clipOnly := &fakeBackend{method: ClipboardOnly, fail: assertErr("fail")}

	backends := map[Method]Backend{AccessibilityInsert: a11y, ClipboardAndPaste: clip, ClipboardOnly: clipOnly}
	probeState := ProbeState{Accessibility: true, ClipboardWayland: true}

	m := newTestManager(t, cfg, probeState, backends, EditableText)

	_, err := m.Inject(context.Background(), "x")
	require.Error(t, err)
}

func TestManager_BlockedByBlocklist(t *testing.T) {
	cfg := config.Default().Injection
	cfg.Blocklist = []string{"editor"}

	m := newTestManager(t, cfg, ProbeState{}, map[Method]Backend{}, EditableText)

	result, err := m.Inject(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, result.Blocked)
}

func TestManager_EmptyAllowlistAcceptsAll(t *testing.T) {
	cfg := config.Default().Injection
	cfg.Allowlist = nil

	m := newTestManager(t, cfg, ProbeState{}, map[Method]Backend{}, EditableText)

	result, err := m.Inject(context.Background(), "x")
	require.NoError(t, err) // falls through to NoOp
	assert.Equal(t, NoOp, result.Method)
}

func TestManager_UnknownAppIDBlockedByNonEmptyAllowlist(t *testing.T) {
	cfg := config.Default().Injection
	cfg.Allowlist = []string{"some-other-app"}

	m := NewManager(cfg, fixedAppID{id: UnknownAppID}, NewFocusTracker(fixedFocus{status: EditableText}, 0), testProber(ProbeState{}), map[Method]Backend{})

	result, err := m.Inject(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, result.Blocked)
}

func TestManager_RequireFocusBlocksNonEditable(t *testing.T) {
	cfg := config.Default().Injection
	cfg.RequireFocus = true

	m := newTestManager(t, cfg, ProbeState{Accessibility: true}, map[Method]Backend{}, NonEditable)

	_, err := m.Inject(context.Background(), "x")
	require.Error(t, err)
}

func assertErr(msg string) error { return &simpleErr{msg} }

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }
