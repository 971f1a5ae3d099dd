package injection

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coldvox/engine/internal/stt"
)

// SessionState is the Injection Session's lifecycle state (spec §3).
type SessionState int

const (
	Idle SessionState = iota
	Buffering
	Flushing
)

func (s SessionState) String() string {
	switch s {
	case Buffering:
		return "buffering"
	case Flushing:
		return "flushing"
	default:
		return "idle"
	}
}

// DefaultSilenceTimeout matches spec §4.9's flush trigger default.
const DefaultSilenceTimeout = 2 * time.Second

// Session accumulates Final transcription text and flushes it to the
// Strategy Manager either on a silence timeout or an explicit end (spec
// §4.9). Partial events are accepted only to satisfy the contract; they
// never alter the buffer.
type Session struct {
	manager        *Manager
	silenceTimeout time.Duration

	mu           sync.Mutex
	state        SessionState
	buffer       strings.Builder
	lastActivity time.Time

	id string
}

// NewSession builds a Session flushing through manager, using timeout (0
// uses DefaultSilenceTimeout).
func NewSession(manager *Manager, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultSilenceTimeout
	}
	return &Session{
		manager:        manager,
		silenceTimeout: timeout,
		state:          Idle,
		id:             uuid.NewString(),
	}
}

// Run consumes events until ctx is done or events is closed, flushing on
// the silence timeout (spec §4.9). Final events append text; Partial
// events are observed but ignored for buffering purposes.
func (s *Session) Run(ctx context.Context, events <-chan stt.TranscriptionEvent) {
	timer := time.NewTimer(s.silenceTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.End(context.Background())
			return

		case ev, ok := <-events:
			if !ok {
				s.End(context.Background())
				return
			}
			if ev.Kind == stt.EventFinal {
				s.appendFinal(ev.Text)
				resetTimer(timer, s.silenceTimeout)
			}

		case <-timer.C:
			s.flush(ctx)
			timer.Reset(s.silenceTimeout)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (s *Session) appendFinal(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer.Len() > 0 {
		s.buffer.WriteByte(' ')
	}
	s.buffer.WriteString(text)
	s.state = Buffering
	s.lastActivity = time.Now()
}

// flush hands the accumulated buffer to the Strategy Manager and clears
// it, transitioning Buffering -> Flushing -> Idle (spec §4.9). A failed
// injection is logged; per spec §7 the text is not retried on the next
// utterance, it is either delivered or dropped.
func (s *Session) flush(ctx context.Context) {
	s.mu.Lock()
	if s.buffer.Len() == 0 {
		s.mu.Unlock()
		return
	}
	text := s.buffer.String()
	s.buffer.Reset()
	s.state = Flushing
	s.mu.Unlock()

	if _, err := s.manager.Inject(ctx, text); err != nil {
		slog.Warn("injection session: flush failed, text dropped", "session_id", s.id, "error", err)
	}

	s.mu.Lock()
	s.state = Idle
	s.mu.Unlock()
}

// End forces an immediate flush regardless of the silence timer.
func (s *Session) End(ctx context.Context) {
	s.flush(ctx)
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
