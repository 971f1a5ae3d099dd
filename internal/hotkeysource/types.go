// Package hotkeysource implements the optional hotkey-driven VAD bypass
// described in spec.md §6: a push-to-talk global shortcut that feeds
// SpeechStart/SpeechEnd events straight into the pipeline, skipping §4.4
// entirely while the key is held.
package hotkeysource

import "github.com/coldvox/engine/internal/vad"

// Handle abstracts a registered global hotkey so Source can be driven by a
// fake in tests instead of an OS-level key hook.
type Handle interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Events is the channel Source publishes vad.Events onto; it mirrors the
// shape of §4.4's own event stream so downstream consumers (the STT
// Processor) don't need to know which source produced an event.
type Events = chan vad.Event
