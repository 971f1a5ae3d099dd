package injection

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/config"
)

// keystrokeSocketPath is the well-known per-user Unix-domain socket path
// for the input-simulation daemon (spec §6), modeled on ydotool's
// `$XDG_RUNTIME_DIR/.ydotool_socket` convention.
func keystrokeSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, ".ydotool_socket")
	}
	return filepath.Join(os.TempDir(), ".ydotool_socket")
}

// keystrokeSocketReachable dials the daemon's socket with a short timeout;
// used by the probe and by KeystrokeBackend.IsAvailable.
func keystrokeSocketReachable() bool {
	conn, err := net.DialTimeout("unix", keystrokeSocketPath(), ProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// KeystrokeBackend types text character-by-character through the OS
// input-simulation daemon's Unix-domain socket, rate-limited by
// keystroke_rate_cps (spec §4.8, §6). No client library for this bespoke
// protocol appears anywhere in the retrieved corpus, so this is a direct
// socket client rather than a wrapped dependency (see DESIGN.md).
type KeystrokeBackend struct {
	cfg config.InjectionConfig
}

// NewKeystrokeBackend builds a backend rate-limited per cfg.
func NewKeystrokeBackend(cfg config.InjectionConfig) *KeystrokeBackend {
	return &KeystrokeBackend{cfg: cfg}
}

func (b *KeystrokeBackend) Name() Method { return KeystrokeSimulation }

func (b *KeystrokeBackend) IsAvailable(ctx context.Context) bool {
	return keystrokeSocketReachable()
}

// interKeyDelay derives the pacing delay from keystroke_rate_cps.
func (b *KeystrokeBackend) interKeyDelay() time.Duration {
	rate := b.cfg.KeystrokeRateCPS
	if rate <= 0 {
		rate = 20
	}
	return time.Second / time.Duration(rate)
}

// Inject dials the daemon once and streams one "type" command per rune,
// paced by interKeyDelay so the daemon (and any OS-level key-repeat
// detection) never sees a burst.
func (b *KeystrokeBackend) Inject(ctx context.Context, text string) error {
	conn, err := net.DialTimeout("unix", keystrokeSocketPath(), ProbeTimeout)
	if err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "dialing keystroke daemon socket")
	}
	defer conn.Close()

	delay := b.interKeyDelay()
	for i, r := range text {
		if i > 0 {
			select {
			case <-ctx.Done():
				return apperr.Wrap(ctx.Err(), apperr.InjectionTimeout, "keystroke injection cancelled")
			case <-time.After(delay):
			}
		}
		if _, err := fmt.Fprintf(conn, "type %c\n", r); err != nil {
			return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "writing to keystroke daemon")
		}
	}
	return nil
}

// sendPasteChord sends a Ctrl+V key chord, used by ClipboardBackend when
// no accessibility action interface is available to trigger the paste.
func (b *KeystrokeBackend) sendPasteChord(ctx context.Context) error {
	conn, err := net.DialTimeout("unix", keystrokeSocketPath(), ProbeTimeout)
	if err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "dialing keystroke daemon socket")
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "key ctrl+v\n"); err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "sending paste chord")
	}
	return nil
}

func (b *KeystrokeBackend) Info() string {
	return "keystroke-simulation: types text through the input-simulation daemon"
}

var _ Backend = (*KeystrokeBackend)(nil)
