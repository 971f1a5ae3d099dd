package injection

import (
	"context"
	"os/exec"
	"strings"
)

// AppIDResolver determines the currently focused application's identity.
type AppIDResolver interface {
	ActiveAppID(ctx context.Context) (string, error)
}

// UnknownAppID is substituted whenever the lookup fails (spec §4.8 step 1).
const UnknownAppID = "unknown"

// WindowManagerResolver shells out to KDE (qdbus) and then X11 (xprop)
// window-identity tools in turn, same fallback chain as the original implementation
// (grounded on the Rust source's window_manager.rs get_active_window_class).
type WindowManagerResolver struct{}

func NewWindowManagerResolver() *WindowManagerResolver { return &WindowManagerResolver{} }

// ActiveAppID never returns an error; lookup failure resolves to
// UnknownAppID, matching spec §4.8 step 1 exactly ("if lookup fails,
// app_id = unknown").
func (WindowManagerResolver) ActiveAppID(ctx context.Context) (string, error) {
	if class := kdeActiveWindowClass(ctx); class != "" {
		return class, nil
	}
	if class := x11ActiveWindowClass(ctx); class != "" {
		return class, nil
	}
	return UnknownAppID, nil
}

func kdeActiveWindowClass(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "qdbus", "org.kde.KWin", "/KWin", "org.kde.KWin.activeClient").Output()
	if err != nil {
		return ""
	}
	windowID := strings.TrimSpace(string(out))
	if windowID == "" {
		return ""
	}
	classOut, err := exec.CommandContext(ctx, "qdbus", "org.kde.KWin", "/Windows/"+windowID, "org.kde.KWin.Window.resourceClass").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(classOut))
}

func x11ActiveWindowClass(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW").Output()
	if err != nil {
		return ""
	}
	fields := strings.Split(string(out), "# ")
	if len(fields) < 2 {
		return ""
	}
	windowID := strings.TrimSpace(fields[1])
	if windowID == "" {
		return ""
	}
	classOut, err := exec.CommandContext(ctx, "xprop", "-id", windowID, "WM_CLASS").Output()
	if err != nil {
		return ""
	}
	// WM_CLASS(STRING) = "instance", "class" -> take the class (second quoted token)
	parts := strings.Split(string(classOut), "\"")
	if len(parts) >= 4 {
		return parts[3]
	}
	return ""
}

var _ AppIDResolver = WindowManagerResolver{}
