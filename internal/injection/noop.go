package injection

import "context"

// NoOpBackend always succeeds silently; it is the guaranteed plan tail so
// the pipeline never stalls waiting on a sink (spec §4.8).
type NoOpBackend struct{}

func (NoOpBackend) Name() Method { return NoOp }

func (NoOpBackend) IsAvailable(context.Context) bool { return true }

func (NoOpBackend) Inject(context.Context, string) error { return nil }

func (NoOpBackend) Info() string { return "no-op: discards text silently" }

var _ Backend = NoOpBackend{}
