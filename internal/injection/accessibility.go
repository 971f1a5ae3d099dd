package injection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/coldvox/engine/internal/apperr"
)

// AT-SPI-style interface/method names the accessibility bus is expected to
// expose (spec §6): an editable-text insertion method, an action interface
// exposing "paste", and a text interface exposing the caret offset.
const (
	a11yBusDest       = "org.a11y.Bus"
	a11yBusPath       = "/org/a11y/bus"
	a11yEditableIface = "org.a11y.atspi.EditableText"
	a11yActionIface   = "org.a11y.atspi.Action"
	a11yTextIface     = "org.a11y.atspi.Text"
)

// AccessibilityBackend inserts text through AT-SPI-style calls over the
// session bus (spec §4.8); focusedEditableObject says which object those
// calls target. It also implements FocusChecker for the FocusTracker.
type AccessibilityBackend struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewAccessibilityBackend builds a backend that lazily connects to the
// session bus on first use; connecting eagerly at construction time would
// make every caller pay a bus round-trip even when accessibility was never
// going to be attempted.
func NewAccessibilityBackend() *AccessibilityBackend {
	return &AccessibilityBackend{}
}

func (b *AccessibilityBackend) Name() Method { return AccessibilityInsert }

func (b *AccessibilityBackend) connection() (*dbus.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InjectionMethodUnavailable, "connecting to session bus")
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, apperr.Wrap(err, apperr.InjectionMethodUnavailable, "authenticating session bus")
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, apperr.Wrap(err, apperr.InjectionMethodUnavailable, "session bus hello")
	}
	b.conn = conn
	return conn, nil
}

// IsAvailable checks the accessibility registry is reachable.
func (b *AccessibilityBackend) IsAvailable(ctx context.Context) bool {
	conn, err := b.connection()
	if err != nil {
		return false
	}
	obj := conn.Object(a11yBusDest, dbus.ObjectPath(a11yBusPath))
	call := obj.CallWithContext(ctx, a11yBusDest+".GetAddress", 0)
	return call.Err == nil
}

// focusedEditableObject checks that the accessibility bus address resolves
// and then returns the registry's root accessible object
// (`org.a11y.atspi.Registry` at /org/a11y/atspi/accessible/root) on the
// session connection. It does not walk the accessible tree or subscribe to
// focus signals, so the object returned is that root, not the focused
// editable-text object; Inject, TriggerPaste and FocusStatus all call
// their methods on it.
func (b *AccessibilityBackend) focusedEditableObject(ctx context.Context) (dbus.BusObject, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(a11yBusDest, dbus.ObjectPath(a11yBusPath))
	var addr string
	if call := obj.CallWithContext(ctx, a11yBusDest+".GetAddress", 0); call.Err != nil {
		return nil, apperr.Wrap(call.Err, apperr.InjectionNoEditableFocus, "resolving accessibility bus address")
	} else if err := call.Store(&addr); err != nil {
		return nil, apperr.Wrap(err, apperr.InjectionNoEditableFocus, "decoding accessibility bus address")
	}

	registry := conn.Object("org.a11y.atspi.Registry", dbus.ObjectPath("/org/a11y/atspi/accessible/root"))
	return registry, nil
}

// Inject reads the caret offset of the object returned by
// focusedEditableObject and inserts text there (spec §4.8). Fails with InjectionNoEditableFocus when no editable
// object is focused, or InjectionMethodUnavailable on bus errors.
func (b *AccessibilityBackend) Inject(ctx context.Context, text string) error {
	target, err := b.focusedEditableObject(ctx)
	if err != nil {
		return err
	}

	var caret int32
	if call := target.CallWithContext(ctx, a11yTextIface+".GetCaretOffset", 0); call.Err != nil {
		return apperr.Wrap(call.Err, apperr.InjectionNoEditableFocus, "reading caret offset")
	} else if err := call.Store(&caret); err != nil {
		caret = 0
	}

	call := target.CallWithContext(ctx, a11yEditableIface+".InsertText", 0, caret, text, int32(len(text)))
	if call.Err != nil {
		return apperr.Wrap(call.Err, apperr.InjectionNoEditableFocus, "inserting text via accessibility bus")
	}
	return nil
}

// TriggerPaste invokes the focused object's "paste" action via the Action
// interface; used by ClipboardAndPaste when accessibility is available
// (spec §4.8's "either via the accessibility action interface ... or a
// synthesized keystroke").
func (b *AccessibilityBackend) TriggerPaste(ctx context.Context) error {
	target, err := b.focusedEditableObject(ctx)
	if err != nil {
		return err
	}
	call := target.CallWithContext(ctx, a11yActionIface+".DoAction", 0, int32(0))
	if call.Err != nil {
		return apperr.Wrap(call.Err, apperr.InjectionMethodUnavailable, "triggering paste action")
	}
	return nil
}

func (b *AccessibilityBackend) Info() string {
	return "accessibility-insert: AT-SPI-style editable-text insertion over the session bus"
}

// FocusStatus implements FocusChecker by probing whether the currently
// focused object exposes the EditableText interface.
func (b *AccessibilityBackend) FocusStatus(ctx context.Context) (FocusStatus, error) {
	target, err := b.focusedEditableObject(ctx)
	if err != nil {
		return UnknownFocus, err
	}
	var caret int32
	call := target.CallWithContext(ctx, a11yTextIface+".GetCaretOffset", 0)
	if call.Err != nil {
		return NonEditable, nil
	}
	if err := call.Store(&caret); err != nil {
		return UnknownFocus, nil
	}
	return EditableText, nil
}

// Close releases the bus connection, if any.
func (b *AccessibilityBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			slog.Warn("injection: closing accessibility bus connection failed", "error", err)
		}
		b.conn = nil
	}
}

var (
	_ Backend      = (*AccessibilityBackend)(nil)
	_ FocusChecker = (*AccessibilityBackend)(nil)
)
