package injection

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/config"
)

// Manager is the Strategy Manager (spec §4.8): it executes an injection
// plan with per-method timeouts, cooldowns, per-app learning, and focus
// gating. A Manager instance is single-writer by construction (spec §5:
// "PerAppHistory lives inside this task and is never shared across
// tasks"), so Inject must not be called concurrently from multiple
// goroutines.
type Manager struct {
	cfg      config.InjectionConfig
	appIDs   AppIDResolver
	focus    *FocusTracker
	history  *History
	prober   *Prober
	backends map[Method]Backend
}

// NewManager wires the Strategy Manager's collaborators. backends must
// contain an entry for every Method the planner can produce except NoOp,
// which is synthesized internally.
func NewManager(cfg config.InjectionConfig, appIDs AppIDResolver, focus *FocusTracker, prober *Prober, backends map[Method]Backend) *Manager {
	return &Manager{
		cfg:      cfg,
		appIDs:   appIDs,
		focus:    focus,
		history:  NewHistory(cfg),
		prober:   prober,
		backends: backends,
	}
}

// History exposes the per-app learning store, mainly for tests and health
// snapshots.
func (m *Manager) History() *History { return m.history }

// Inject runs the full per-invocation procedure from spec §4.8.
func (m *Manager) Inject(ctx context.Context, text string) (Result, error) {
	budget := time.Duration(m.cfg.MaxTotalLatencyMs) * time.Millisecond
	deadline := time.Now().Add(budget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	appID, err := m.appIDs.ActiveAppID(ctx)
	if err != nil || appID == "" {
		appID = UnknownAppID
	}

	if blocked := m.checkAllowBlockList(appID); blocked {
		return Result{Blocked: true}, apperr.Newf(apperr.InjectionBlocked, "app %q not permitted", appID)
	}

	status := m.focus.Status(ctx)
	if m.cfg.RequireFocus && status == NonEditable {
		return Result{}, apperr.New(apperr.InjectionNoEditableFocus, "no editable focus and require_focus is set")
	}
	if status == UnknownFocus && !m.cfg.InjectOnUnknownFocus {
		return Result{}, apperr.New(apperr.InjectionTransient, "unknown focus state and inject_on_unknown_focus is false")
	}

	probeState := m.prober.Probe(ctx)
	base := BuildPlan(m.cfg, probeState)
	plan := m.history.Reorder(appID, base, time.Now())

	return m.runPlan(ctx, appID, plan, text, deadline)
}

func (m *Manager) checkAllowBlockList(appID string) bool {
	if len(m.cfg.Allowlist) > 0 {
		allowed := false
		for _, a := range m.cfg.Allowlist {
			if a == appID {
				allowed = true
				break
			}
		}
		if !allowed {
			return true
		}
	}
	for _, b := range m.cfg.Blocklist {
		if b == appID {
			return true
		}
	}
	return false
}

// runPlan attempts each method in order within a per-method timeout,
// recording success/failure in History as it goes (spec §4.8 step 5).
func (m *Manager) runPlan(ctx context.Context, appID string, plan Plan, text string, overallDeadline time.Time) (Result, error) {
	perMethodTimeout := time.Duration(m.cfg.PerMethodTimeoutMs) * time.Millisecond

	for _, method := range plan {
		if time.Now().After(overallDeadline) {
			break
		}

		backend := m.resolveBackend(method)
		if backend == nil {
			continue
		}

		methodCtx, cancel := context.WithTimeout(ctx, perMethodTimeout)
		err := backend.Inject(methodCtx, text)
		cancel()

		if err == nil {
			m.history.RecordSuccess(appID, method)
			m.logResult(appID, method, text, nil)
			return Result{Method: method}, nil
		}

		m.history.RecordFailure(appID, method, time.Now())
		m.logResult(appID, method, text, err)
	}

	return Result{}, apperr.New(apperr.InjectionAllMethodsFailed, "every injection method failed")
}

func (m *Manager) resolveBackend(method Method) Backend {
	if method == NoOp {
		return NoOpBackend{}
	}
	return m.backends[method]
}

// logResult logs the outcome of one attempt, redacting text per
// injection.redact_logs (spec §4.8's log-redaction clause).
func (m *Manager) logResult(appID string, method Method, text string, err error) {
	textField := text
	if m.cfg.RedactLogs {
		textField = redactedSummary(text)
	}
	if err != nil {
		slog.Warn("injection attempt failed", "app_id", appID, "method", method, "text", textField, "error", err)
		return
	}
	slog.Info("injection attempt succeeded", "app_id", appID, "method", method, "text", textField)
}

func redactedSummary(text string) string {
	return "<redacted, len=" + strconv.Itoa(len(text)) + ">"
}
