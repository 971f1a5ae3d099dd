package injection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coldvox/engine/internal/config"
)

func defaultInjectionConfig() config.InjectionConfig {
	return config.Default().Injection
}

func TestBuildPlan_AccessibilityAndClipboardOnly(t *testing.T) {
	cfg := defaultInjectionConfig() // keystroke/wm-assist off by default
	probe := ProbeState{Accessibility: true, ClipboardWayland: true, KeystrokeDaemon: false}

	plan := BuildPlan(cfg, probe)

	assert.Equal(t, Plan{AccessibilityInsert, ClipboardAndPaste, ClipboardOnly, NoOp}, plan)
}

// TestBuildPlan_CanonicalOrder is spec §8 scenario 6 verbatim.
func TestBuildPlan_CanonicalOrder(t *testing.T) {
	cfg := defaultInjectionConfig()
	cfg.AllowKeystroke = true
	cfg.AllowWMAssist = true
	probe := ProbeState{Accessibility: true, ClipboardWayland: true, KeystrokeDaemon: true}

	plan := BuildPlan(cfg, probe)

	assert.Equal(t, Plan{
		AccessibilityInsert,
		ClipboardAndPaste,
		ClipboardOnly,
		WindowManagerAssist,
		KeystrokeSimulation,
		NoOp,
	}, plan)
}

func TestBuildPlan_NoCapabilitiesDetected(t *testing.T) {
	cfg := defaultInjectionConfig()
	plan := BuildPlan(cfg, ProbeState{})
	assert.Equal(t, Plan{NoOp}, plan)
}

func TestBuildPlan_AlwaysEndsWithNoOpAndNoDuplicates(t *testing.T) {
	cfg := defaultInjectionConfig()
	cfg.AllowKeystroke = true
	cfg.AllowWMAssist = true
	probe := ProbeState{Accessibility: true, ClipboardWayland: true, ClipboardX11: true, KeystrokeDaemon: true}

	plan := BuildPlan(cfg, probe)

	assert.Equal(t, NoOp, plan[len(plan)-1])
	seen := make(map[Method]int)
	for _, m := range plan {
		seen[m]++
	}
	for m, count := range seen {
		assert.Equalf(t, 1, count, "method %v appeared %d times", m, count)
	}
}

// TestBuildPlan_Deterministic is spec §8's "Planner output is a pure
// function of (config, probe_state)" invariant.
func TestBuildPlan_Deterministic(t *testing.T) {
	cfg := defaultInjectionConfig()
	probe := ProbeState{Accessibility: true, ClipboardX11: true}

	first := BuildPlan(cfg, probe)
	second := BuildPlan(cfg, probe)

	assert.Equal(t, first, second)
}

func TestBuildPlan_AllowlistDoesNotAffectPlanner(t *testing.T) {
	// The allow/blocklist gates app_id, not the method plan; planner only
	// reacts to per-method allow_* flags and probe state.
	cfg := defaultInjectionConfig()
	cfg.Allowlist = []string{"some-app"}
	probe := ProbeState{Accessibility: true}

	plan := BuildPlan(cfg, probe)
	assert.Equal(t, Plan{AccessibilityInsert, NoOp}, plan)
}
