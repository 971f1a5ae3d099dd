package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			t.Cleanup(func() { os.Setenv(k, old) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t,
		"COLDVOX_SAMPLE_RATE_HZ", "COLDVOX_FRAME_SIZE_SAMPLES", "COLDVOX_VAD_MODE",
		"COLDVOX_VAD_THRESHOLD", "COLDVOX_STT_PREFERRED", "COLDVOX_STT_REQUIRE_LOCAL",
		"COLDVOX_INJECTION_ALLOW_KEYSTROKE", "COLDVOX_INJECTION_REDACT_LOGS",
	)

	cfg := Load()

	if cfg.SampleRateHz != 16000 {
		t.Errorf("SampleRateHz = %d, want 16000", cfg.SampleRateHz)
	}
	if cfg.FrameSizeSamples != 512 {
		t.Errorf("FrameSizeSamples = %d, want 512", cfg.FrameSizeSamples)
	}
	if cfg.VAD.Mode != VADModeEnergy {
		t.Errorf("VAD.Mode = %q, want %q", cfg.VAD.Mode, VADModeEnergy)
	}
	if cfg.VAD.Threshold != 0.5 {
		t.Errorf("VAD.Threshold = %f, want 0.5", cfg.VAD.Threshold)
	}
	if cfg.STT.Preferred != "vosk" {
		t.Errorf("STT.Preferred = %q, want vosk", cfg.STT.Preferred)
	}
	if !cfg.STT.RequireLocal {
		t.Error("STT.RequireLocal should default to true")
	}
	if cfg.Injection.AllowKeystroke {
		t.Error("Injection.AllowKeystroke should default to false")
	}
	if !cfg.Injection.AllowClipboard {
		t.Error("Injection.AllowClipboard should default to true")
	}
	if cfg.Injection.RedactLogs {
		t.Error("Injection.RedactLogs should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	os.Setenv("COLDVOX_SAMPLE_RATE_HZ", "48000")
	os.Setenv("COLDVOX_FRAME_SIZE_SAMPLES", "1024")
	os.Setenv("COLDVOX_VAD_MODE", "neural")
	os.Setenv("COLDVOX_VAD_THRESHOLD", "0.7")
	os.Setenv("COLDVOX_STT_PREFERRED", "whisper")
	os.Setenv("COLDVOX_STT_REQUIRE_LOCAL", "false")
	os.Setenv("COLDVOX_STT_FALLBACKS", "vosk, cloud")
	os.Setenv("COLDVOX_INJECTION_ALLOW_KEYSTROKE", "true")
	os.Setenv("COLDVOX_INJECTION_ALLOWLIST", "term1,term2")
	t.Cleanup(func() {
		for _, k := range []string{
			"COLDVOX_SAMPLE_RATE_HZ", "COLDVOX_FRAME_SIZE_SAMPLES", "COLDVOX_VAD_MODE",
			"COLDVOX_VAD_THRESHOLD", "COLDVOX_STT_PREFERRED", "COLDVOX_STT_REQUIRE_LOCAL",
			"COLDVOX_STT_FALLBACKS", "COLDVOX_INJECTION_ALLOW_KEYSTROKE", "COLDVOX_INJECTION_ALLOWLIST",
		} {
			os.Unsetenv(k)
		}
	})

	cfg := Load()

	if cfg.SampleRateHz != 48000 {
		t.Errorf("SampleRateHz = %d, want 48000", cfg.SampleRateHz)
	}
	if cfg.FrameSizeSamples != 1024 {
		t.Errorf("FrameSizeSamples = %d, want 1024", cfg.FrameSizeSamples)
	}
	if cfg.VAD.Mode != VADModeNeural {
		t.Errorf("VAD.Mode = %q, want neural", cfg.VAD.Mode)
	}
	if cfg.VAD.Threshold != 0.7 {
		t.Errorf("VAD.Threshold = %f, want 0.7", cfg.VAD.Threshold)
	}
	if cfg.STT.Preferred != "whisper" {
		t.Errorf("STT.Preferred = %q, want whisper", cfg.STT.Preferred)
	}
	if cfg.STT.RequireLocal {
		t.Error("STT.RequireLocal should be false")
	}
	if len(cfg.STT.Fallbacks) != 2 || cfg.STT.Fallbacks[0] != "vosk" || cfg.STT.Fallbacks[1] != "cloud" {
		t.Errorf("STT.Fallbacks = %v, want [vosk cloud]", cfg.STT.Fallbacks)
	}
	if !cfg.Injection.AllowKeystroke {
		t.Error("Injection.AllowKeystroke should be true")
	}
	if len(cfg.Injection.Allowlist) != 2 {
		t.Errorf("Injection.Allowlist = %v, want 2 entries", cfg.Injection.Allowlist)
	}
}

func TestValidateRejectsNonPositiveFrameSize(t *testing.T) {
	cfg := Default()
	cfg.FrameSizeSamples = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for zero frame size")
	}
}

func TestValidateRejectsNeuralModeWithoutModelPath(t *testing.T) {
	cfg := Default()
	cfg.VAD.Mode = VADModeNeural
	cfg.VAD.ModelPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for neural mode with no model path")
	}
}

func TestValidateRejectsOverlappingAllowBlockLists(t *testing.T) {
	cfg := Default()
	cfg.Injection.Allowlist = []string{"editor"}
	cfg.Injection.Blocklist = []string{"editor"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for app in both lists")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
sample_rate_hz: 44100
vad:
  mode: energy
  threshold: 0.6
stt:
  preferred: vosk
  fallbacks: ["whisper"]
injection:
  allow_keystroke: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML() = %v, want nil", err)
	}
	if cfg.SampleRateHz != 44100 {
		t.Errorf("SampleRateHz = %d, want 44100", cfg.SampleRateHz)
	}
	if cfg.VAD.Threshold != 0.6 {
		t.Errorf("VAD.Threshold = %f, want 0.6", cfg.VAD.Threshold)
	}
	if len(cfg.STT.Fallbacks) != 1 || cfg.STT.Fallbacks[0] != "whisper" {
		t.Errorf("STT.Fallbacks = %v, want [whisper]", cfg.STT.Fallbacks)
	}
	// Fields not present in the file keep their Default() values.
	if cfg.FrameSizeSamples != 512 {
		t.Errorf("FrameSizeSamples = %d, want 512 (default)", cfg.FrameSizeSamples)
	}
	if !cfg.Injection.AllowKeystroke {
		t.Error("Injection.AllowKeystroke should be true")
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	if _, err := LoadYAML("/nonexistent/path/config.yaml"); err == nil {
		t.Error("LoadYAML() = nil, want error for missing file")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TEST_STRING", "hello")
	defer os.Unsetenv("TEST_STRING")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")
	if v := getEnvInt("TEST_INT", 0); v != 42 {
		t.Errorf("getEnvInt = %d, want %d", v, 42)
	}
	os.Setenv("TEST_INT_INVALID", "not-a-number")
	defer os.Unsetenv("TEST_INT_INVALID")
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	os.Setenv("TEST_FLOAT", "3.14")
	defer os.Unsetenv("TEST_FLOAT")
	if v := getEnvFloat("TEST_FLOAT", 0.0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want %f", v, 3.14)
	}

	os.Setenv("TEST_BOOL_TRUE", "true")
	os.Setenv("TEST_BOOL_ONE", "1")
	os.Setenv("TEST_BOOL_FALSE", "false")
	defer func() {
		os.Unsetenv("TEST_BOOL_TRUE")
		os.Unsetenv("TEST_BOOL_ONE")
		os.Unsetenv("TEST_BOOL_FALSE")
	}()
	if !getEnvBool("TEST_BOOL_TRUE", false) {
		t.Error("getEnvBool should return true for 'true'")
	}
	if !getEnvBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvBool should return true for '1'")
	}
	if getEnvBool("TEST_BOOL_FALSE", true) {
		t.Error("getEnvBool should return false for 'false'")
	}
}
