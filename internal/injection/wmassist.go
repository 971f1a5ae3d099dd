package injection

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/coldvox/engine/internal/apperr"
)

// wmDest, wmPath and wmMethod name the D-Bus call ensureFocused makes
// before delegating: the desktop portal's Background.RequestBackground
// method. Any call failure is treated as "assist unavailable" and the
// delegate backend is attempted regardless.
const (
	wmDest   = "org.freedesktop.impl.portal.desktop"
	wmPath   = "/org/freedesktop/portal/desktop"
	wmMethod = "org.freedesktop.portal.Background.RequestBackground"
)

// WMAssistBackend makes a best-effort D-Bus call to the desktop portal
// (see wmMethod), then delegates to an earlier backend (spec §4.8). The
// portal call does not identify, raise or focus any particular window. It
// is never terminal in the plan by construction: Inject always attempts
// the delegate afterward, even if the portal call fails.
type WMAssistBackend struct {
	delegate Backend
}

// NewWMAssistBackend wraps delegate with a focus-assist step.
func NewWMAssistBackend(delegate Backend) *WMAssistBackend {
	return &WMAssistBackend{delegate: delegate}
}

func (b *WMAssistBackend) Name() Method { return WindowManagerAssist }

func (b *WMAssistBackend) IsAvailable(ctx context.Context) bool {
	return b.delegate.IsAvailable(ctx)
}

// Inject makes the best-effort portal call, then delegates the actual
// injection.
func (b *WMAssistBackend) Inject(ctx context.Context, text string) error {
	if err := b.ensureFocused(ctx); err != nil {
		// Best-effort: focus assist failing doesn't block the delegate.
		_ = err
	}
	if err := b.delegate.Inject(ctx, text); err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "wm-assisted delegate injection")
	}
	return nil
}

func (b *WMAssistBackend) ensureFocused(ctx context.Context) error {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "connecting to session bus for wm-assist")
	}
	defer conn.Close()
	if err := conn.Auth(nil); err != nil {
		return err
	}
	if err := conn.Hello(); err != nil {
		return err
	}
	obj := conn.Object(wmDest, dbus.ObjectPath(wmPath))
	call := obj.CallWithContext(ctx, wmMethod, 0, "", map[string]dbus.Variant{})
	return call.Err
}

func (b *WMAssistBackend) Info() string {
	return "window-manager-assist: best-effort desktop-portal call, then delegates"
}

var _ Backend = (*WMAssistBackend)(nil)
