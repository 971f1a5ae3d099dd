package injection

import (
	"github.com/coldvox/engine/internal/config"
)

// Plan computes the ordered, deduplicated fallback plan for one injection
// call (spec §4.7). It is a pure function of (cfg, probe): same inputs,
// same output, every time (spec §8 "Planner output is a pure function").
//
// Canonical order: accessibility insert, clipboard+paste, clipboard only,
// window-manager-assisted paste (opt-in), keystroke simulation (opt-in),
// NoOp. A method whose backing capability is absent from probe is filtered
// out; the two opt-in methods are filtered out entirely unless their
// config flag is set, independent of probe state filtering.
func BuildPlan(cfg config.InjectionConfig, probe ProbeState) Plan {
	var order []Method

	if cfg.AllowAccessibility && probe.Accessibility {
		order = append(order, AccessibilityInsert)
	}
	if cfg.AllowClipboard && probe.HasClipboard() {
		order = append(order, ClipboardAndPaste)
		order = append(order, ClipboardOnly)
	}
	// Window-manager assist has no capability probe of its own (spec §4.7
	// only probes accessibility/clipboard/keystroke); it is gated on the
	// opt-in config flag alone.
	if cfg.AllowWMAssist {
		order = append(order, WindowManagerAssist)
	}
	if cfg.AllowKeystroke && probe.KeystrokeDaemon {
		order = append(order, KeystrokeSimulation)
	}

	return dedupeWithNoOp(order)
}

// dedupeWithNoOp removes duplicates while preserving first-seen order and
// appends NoOp if not already present (spec §3 invariant: every plan ends
// with NoOp).
func dedupeWithNoOp(methods []Method) Plan {
	seen := make(map[Method]struct{}, len(methods)+1)
	out := make(Plan, 0, len(methods)+1)
	for _, m := range methods {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if _, ok := seen[NoOp]; !ok {
		out = append(out, NoOp)
	}
	return out
}
