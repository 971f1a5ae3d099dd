package hotkeysource

import "golang.design/x/hotkey"

// osHandle adapts golang.design/x/hotkey's *Hotkey to Handle.
type osHandle struct {
	hk *hotkey.Hotkey
}

// NewOSHandle registers a push-to-talk shortcut with the OS (e.g.
// Ctrl+Alt+Space). Callers own the returned Handle's lifecycle: Register
// before use, Unregister on shutdown.
func NewOSHandle(mods []hotkey.Modifier, key hotkey.Key) Handle {
	return &osHandle{hk: hotkey.New(mods, key)}
}

func (h *osHandle) Register() error   { return h.hk.Register() }
func (h *osHandle) Unregister() error  { return h.hk.Unregister() }
func (h *osHandle) Keydown() <-chan struct{} {
	return bridge(h.hk.Keydown())
}
func (h *osHandle) Keyup() <-chan struct{} {
	return bridge(h.hk.Keyup())
}

// bridge adapts the library's hotkey.Event channel to a bare struct{}
// signal channel, since Source only cares about the edge, not the payload.
func bridge(events <-chan hotkey.Event) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		for range events {
			out <- struct{}{}
		}
		close(out)
	}()
	return out
}
