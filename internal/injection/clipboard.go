package injection

import (
	"context"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/config"
)

// ClipboardBackend writes text to the clipboard and, when a paste-trigger
// mechanism is available, synthesizes the paste; otherwise it leaves the
// text on the clipboard for the user to paste manually (spec §4.8's
// Clipboard-and-paste / Clipboard-only methods, and spec §9's resolved
// Open Question: a set-only clipboard write still counts as success, just
// logged distinctly).
type ClipboardBackend struct {
	cfg       config.InjectionConfig
	paster    Paster // nil means "clipboard-only": no paste trigger available
	asPasteOnly bool
}

// Paster triggers a paste action in the focused window, either via the
// accessibility action interface or a synthesized keystroke (spec §4.8).
type Paster interface {
	TriggerPaste(ctx context.Context) error
}

// keystrokePaster adapts the keystroke-simulation daemon client to Paster
// by sending a Ctrl+V chord.
type keystrokePaster struct {
	client *KeystrokeBackend
}

func (p keystrokePaster) TriggerPaste(ctx context.Context) error {
	return p.client.sendPasteChord(ctx)
}

// NewKeystrokePaster adapts an existing KeystrokeBackend into a Paster, for
// callers wiring clipboard-and-paste without an accessibility backend.
func NewKeystrokePaster(client *KeystrokeBackend) Paster {
	return keystrokePaster{client: client}
}

// NewClipboardAndPasteBackend builds the ClipboardAndPaste method, using
// paster to trigger the paste after the clipboard write.
func NewClipboardAndPasteBackend(cfg config.InjectionConfig, paster Paster) *ClipboardBackend {
	return &ClipboardBackend{cfg: cfg, paster: paster}
}

// NewClipboardOnlyBackend builds the ClipboardOnly method: it writes the
// clipboard and returns success without attempting any paste trigger,
// relying on the user to paste manually (spec §4.7 method 3).
func NewClipboardOnlyBackend(cfg config.InjectionConfig) *ClipboardBackend {
	return &ClipboardBackend{cfg: cfg, asPasteOnly: true}
}

func (b *ClipboardBackend) Name() Method {
	if b.asPasteOnly {
		return ClipboardOnly
	}
	return ClipboardAndPaste
}

// IsAvailable reports whether reading the system clipboard succeeds; no
// write is attempted. atotto/clipboard shells out to
// wl-copy/xclip/pbcopy/clip.exe depending on platform.
func (b *ClipboardBackend) IsAvailable(ctx context.Context) bool {
	_, err := clipboard.ReadAll()
	return err == nil
}

// Inject backs up the current clipboard, writes text, optionally triggers
// a paste, and restores the original contents after a configurable delay
// (spec §4.8). Restoration mismatches are logged as warnings, never as a
// failure of the injection itself.
func (b *ClipboardBackend) Inject(ctx context.Context, text string) error {
	var backup string
	var hadBackup bool
	if b.cfg.RestoreClipboard {
		if v, err := clipboard.ReadAll(); err == nil {
			backup, hadBackup = v, true
		}
	}

	if err := clipboard.WriteAll(text); err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "writing clipboard")
	}

	if b.asPasteOnly || b.paster == nil {
		slog.Info("injection: clipboard set without paste trigger", "mode", "clipboard-only")
	} else if err := b.paster.TriggerPaste(ctx); err != nil {
		return apperr.Wrap(err, apperr.InjectionMethodUnavailable, "triggering paste")
	}

	if hadBackup {
		go b.restoreAfterDelay(backup, text)
	}
	return nil
}

func (b *ClipboardBackend) restoreAfterDelay(backup, justWritten string) {
	delay := time.Duration(b.cfg.ClipboardRestoreDelay) * time.Millisecond
	time.Sleep(delay)

	current, err := clipboard.ReadAll()
	if err != nil {
		slog.Warn("injection: clipboard restore read failed", "error", err)
		return
	}
	if current != justWritten {
		slog.Warn("injection: clipboard changed before restore, skipping", "expected", justWritten == current)
		return
	}
	if err := clipboard.WriteAll(backup); err != nil {
		slog.Warn("injection: clipboard restore write failed", "error", err)
		return
	}

	verify, err := clipboard.ReadAll()
	if err != nil || verify != backup {
		slog.Warn("injection: clipboard restore mismatch", "code", apperr.InjectionClipboardRestoreMismatch)
	}
}

func (b *ClipboardBackend) Info() string {
	if b.asPasteOnly {
		return "clipboard-only: writes the clipboard, user pastes manually"
	}
	return "clipboard-and-paste: writes the clipboard then synthesizes a paste"
}

var _ Backend = (*ClipboardBackend)(nil)
