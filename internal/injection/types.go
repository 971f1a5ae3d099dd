// Package injection implements the text-injection probe/planner, the
// Strategy Manager, per-app history, focus tracking, and the Injection
// Session accumulator (spec §4.7 through §4.9).
package injection

import (
	"context"
	"time"
)

// Method enumerates the injection backend identities (spec §3
// InjectionMethod). Order here is for readability only; ordering of a
// Plan is governed by planner.go.
type Method int

const (
	AccessibilityInsert Method = iota
	ClipboardAndPaste
	ClipboardOnly
	WindowManagerAssist
	KeystrokeSimulation
	NoOp
)

func (m Method) String() string {
	switch m {
	case AccessibilityInsert:
		return "accessibility-insert"
	case ClipboardAndPaste:
		return "clipboard-and-paste"
	case ClipboardOnly:
		return "clipboard-only"
	case WindowManagerAssist:
		return "window-manager-assist"
	case KeystrokeSimulation:
		return "keystroke-simulation"
	case NoOp:
		return "no-op"
	default:
		return "unknown"
	}
}

// Capability describes what backing capability a Method depends on, used
// by the planner to decide whether probe_state supports it.
type Capability struct {
	Method     Method
	CostMillis int // rough cost estimate; BuildPlan and History.Reorder do not read it
}

// ProbeState is the set of backends detected as usable by a single probe
// run (spec §4.7). Zero value means "nothing detected".
type ProbeState struct {
	Accessibility   bool
	ClipboardWayland bool
	ClipboardX11    bool
	KeystrokeDaemon bool
	WindowManager   bool
}

// HasClipboard reports whether either clipboard tool was detected.
func (p ProbeState) HasClipboard() bool {
	return p.ClipboardWayland || p.ClipboardX11
}

// Plan is an ordered, deduplicated list of Methods terminated by NoOp
// (spec §3 InjectionPlan).
type Plan []Method

// FocusStatus reports whether the focused UI element exposes an
// editable-text interface (spec §3).
type FocusStatus int

const (
	EditableText FocusStatus = iota
	NonEditable
	UnknownFocus
)

func (s FocusStatus) String() string {
	switch s {
	case EditableText:
		return "editable-text"
	case NonEditable:
		return "non-editable"
	default:
		return "unknown"
	}
}

// Result is returned by Manager.Inject. Blocked/NoEditableFocus/Other
// short-circuit before any backend is attempted; AllMethodsFailed means
// every backend in the reordered plan (including, impossibly, NoOp)
// returned an error.
type Result struct {
	Method  Method // the method that ultimately succeeded
	Blocked bool
}

// Backend is the polymorphic injection capability set (spec §4.8): each
// concrete method implements IsAvailable/Inject/Name/Info.
type Backend interface {
	Name() Method
	IsAvailable(ctx context.Context) bool
	Inject(ctx context.Context, text string) error
	Info() string
}

// appMethodKey identifies one (app_id, method) pair for PerAppHistory.
type appMethodKey struct {
	appID  string
	method Method
}

// methodStats is the per-(app,method) bookkeeping (spec §3 PerAppHistory).
type methodStats struct {
	successRate      float64 // EMA, [0,1]
	lastFailure      time.Time
	cooldownUntil    time.Time
	currentCooldown  time.Duration
	consecutiveFails int
}
