// Package config declares the engine's configuration record (spec §6) and
// its loaders. CLI flag parsing and config-file path discovery belong to
// the caller; Load and LoadYAML are the minimal entry points such a caller
// would invoke.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coldvox/engine/internal/apperr"
)

// VADMode selects the VAD capability variant (spec §4.4).
type VADMode string

const (
	VADModeEnergy VADMode = "energy"
	VADModeNeural VADMode = "neural"
)

// STTMode selects the Unified STT Processor's operating mode (spec §4.6).
type STTMode string

const (
	STTModeStreaming STTMode = "streaming"
	STTModeBatch     STTMode = "batch"
)

// VADConfig holds the hysteresis parameters for §4.4.
type VADConfig struct {
	Mode         VADMode `yaml:"mode"`
	Threshold    float64 `yaml:"threshold"`
	OnsetDB      float64 `yaml:"onset_db"`
	OffsetDB     float64 `yaml:"offset_db"`
	MinSpeechMs  int     `yaml:"min_speech_ms"`
	MinSilenceMs int     `yaml:"min_silence_ms"`
	EMAAlpha     float64 `yaml:"ema_alpha"`
	ModelPath    string  `yaml:"model_path"`
}

// FailoverConfig tunes STT plugin quarantine (spec §4.5).
type FailoverConfig struct {
	Threshold   int `yaml:"threshold"`
	CooldownSec int `yaml:"cooldown_secs"`
}

// Cooldown returns the quarantine duration as a time.Duration.
func (f FailoverConfig) Cooldown() time.Duration {
	return time.Duration(f.CooldownSec) * time.Second
}

// GCConfig tunes idle-plugin unloading (spec §4.5).
type GCConfig struct {
	ModelTTLSec int  `yaml:"model_ttl_secs"`
	Enabled     bool `yaml:"enabled"`
}

// STTConfig holds plugin-selection policy (spec §4.5, §6).
type STTConfig struct {
	Preferred        string         `yaml:"preferred"`
	Fallbacks        []string       `yaml:"fallbacks"`
	RequireLocal     bool           `yaml:"require_local"`
	MaxMemoryMB      int            `yaml:"max_memory_mb"`
	RequiredLanguage string         `yaml:"required_language"`
	Failover         FailoverConfig `yaml:"failover"`
	GC               GCConfig       `yaml:"gc"`
	Mode             STTMode        `yaml:"mode"`

	// Per-plugin construction settings; each registered plugin's Factory
	// is only eligible for selection once CheckRequirements passes (e.g.
	// the model file actually exists), so leaving one blank just removes
	// that plugin from the candidate list rather than failing startup.
	VoskModelPath    string `yaml:"vosk_model_path"`
	WhisperModelPath string `yaml:"whisper_model_path"`
	CloudEndpoint    string `yaml:"cloud_endpoint"`
	CloudAPIKey      string `yaml:"cloud_api_key"`
}

// InjectionConfig holds the strategy manager's tuning knobs (spec §4.8, §6).
type InjectionConfig struct {
	MaxTotalLatencyMs     int      `yaml:"max_total_latency_ms"`
	PerMethodTimeoutMs    int      `yaml:"per_method_timeout_ms"`
	CooldownInitialMs     int      `yaml:"cooldown_initial_ms"`
	CooldownBackoffFactor float64  `yaml:"cooldown_backoff_factor"`
	CooldownMaxMs         int      `yaml:"cooldown_max_ms"`
	KeystrokeRateCPS      int      `yaml:"keystroke_rate_cps"`
	AllowKeystroke        bool     `yaml:"allow_keystroke"`
	AllowWMAssist         bool     `yaml:"allow_wm_assist"`
	AllowClipboard        bool     `yaml:"allow_clipboard"`
	AllowAccessibility    bool     `yaml:"allow_accessibility"`
	RestoreClipboard      bool     `yaml:"restore_clipboard"`
	ClipboardRestoreDelay int      `yaml:"clipboard_restore_delay_ms"`
	RequireFocus          bool     `yaml:"require_focus"`
	InjectOnUnknownFocus  bool     `yaml:"inject_on_unknown_focus"`
	RedactLogs            bool     `yaml:"redact_logs"`
	Allowlist             []string `yaml:"allowlist"`
	Blocklist             []string `yaml:"blocklist"`
	SilenceTimeoutMs      int      `yaml:"silence_timeout_ms"`
}

// QualityConfig holds §4.10's thresholds.
type QualityConfig struct {
	RMSWindowMs       int     `yaml:"rms_window_ms"`
	PeakHoldMs        int     `yaml:"peak_hold_ms"`
	ClippingDB        float64 `yaml:"clipping_db"`
	TooQuietDB        float64 `yaml:"too_quiet_db"`
	OffAxisEnabled    bool    `yaml:"off_axis_enabled"`
	OffAxisThreshold  float64 `yaml:"off_axis_threshold"`
	WarningCooldownMs int     `yaml:"warning_cooldown_ms"`
}

// Config is the engine's full declarative record (spec §6).
type Config struct {
	SampleRateHz      int             `yaml:"sample_rate_hz"`
	FrameSizeSamples  int             `yaml:"frame_size_samples"`
	VAD               VADConfig       `yaml:"vad"`
	STT               STTConfig       `yaml:"stt"`
	Injection         InjectionConfig `yaml:"injection"`
	Quality           QualityConfig   `yaml:"quality"`
	DeviceHint        string          `yaml:"device_hint"`
	CaptureSystemHint bool            `yaml:"capture_system_hint"`
}

// Default returns production-safe defaults matching spec §6's table.
func Default() *Config {
	return &Config{
		SampleRateHz:     16000,
		FrameSizeSamples: 512,
		VAD: VADConfig{
			Mode:         VADModeEnergy,
			Threshold:    0.5,
			OnsetDB:      9,
			OffsetDB:     6,
			MinSpeechMs:  100,
			MinSilenceMs: 200,
			EMAAlpha:     0.05,
		},
		STT: STTConfig{
			Preferred:    "vosk",
			RequireLocal: true,
			MaxMemoryMB:  1024,
			Failover:     FailoverConfig{Threshold: 3, CooldownSec: 30},
			GC:           GCConfig{ModelTTLSec: 600, Enabled: false},
			Mode:         STTModeStreaming,
		},
		Injection: InjectionConfig{
			MaxTotalLatencyMs:     800,
			PerMethodTimeoutMs:    2000,
			CooldownInitialMs:     1000,
			CooldownBackoffFactor: 2,
			CooldownMaxMs:         10 * 60 * 1000,
			KeystrokeRateCPS:      20,
			AllowKeystroke:        false,
			AllowWMAssist:         false,
			AllowClipboard:        true,
			AllowAccessibility:    true,
			RestoreClipboard:      true,
			ClipboardRestoreDelay: 500,
			RequireFocus:          false,
			InjectOnUnknownFocus:  true,
			RedactLogs:            false,
			SilenceTimeoutMs:      2000,
		},
		Quality: QualityConfig{
			RMSWindowMs:       500,
			PeakHoldMs:        1000,
			ClippingDB:        -1,
			TooQuietDB:        -40,
			OffAxisEnabled:    false,
			OffAxisThreshold:  0.3,
			WarningCooldownMs: 2000,
		},
	}
}

// Load builds a Config from environment variables layered over Default().
func Load() *Config {
	cfg := Default()

	cfg.SampleRateHz = getEnvInt("COLDVOX_SAMPLE_RATE_HZ", cfg.SampleRateHz)
	cfg.FrameSizeSamples = getEnvInt("COLDVOX_FRAME_SIZE_SAMPLES", cfg.FrameSizeSamples)
	cfg.DeviceHint = getEnv("COLDVOX_DEVICE_HINT", cfg.DeviceHint)
	cfg.CaptureSystemHint = getEnvBool("COLDVOX_CAPTURE_SYSTEM_HINT", cfg.CaptureSystemHint)

	if m := getEnv("COLDVOX_VAD_MODE", string(cfg.VAD.Mode)); m == string(VADModeNeural) {
		cfg.VAD.Mode = VADModeNeural
	} else {
		cfg.VAD.Mode = VADModeEnergy
	}
	cfg.VAD.Threshold = getEnvFloat("COLDVOX_VAD_THRESHOLD", cfg.VAD.Threshold)
	cfg.VAD.OnsetDB = getEnvFloat("COLDVOX_VAD_ONSET_DB", cfg.VAD.OnsetDB)
	cfg.VAD.OffsetDB = getEnvFloat("COLDVOX_VAD_OFFSET_DB", cfg.VAD.OffsetDB)
	cfg.VAD.MinSpeechMs = getEnvInt("COLDVOX_VAD_MIN_SPEECH_MS", cfg.VAD.MinSpeechMs)
	cfg.VAD.MinSilenceMs = getEnvInt("COLDVOX_VAD_MIN_SILENCE_MS", cfg.VAD.MinSilenceMs)
	cfg.VAD.EMAAlpha = getEnvFloat("COLDVOX_VAD_EMA_ALPHA", cfg.VAD.EMAAlpha)
	cfg.VAD.ModelPath = getEnv("COLDVOX_VAD_MODEL_PATH", cfg.VAD.ModelPath)

	cfg.STT.Preferred = getEnv("COLDVOX_STT_PREFERRED", cfg.STT.Preferred)
	cfg.STT.Fallbacks = getEnvList("COLDVOX_STT_FALLBACKS", cfg.STT.Fallbacks)
	cfg.STT.RequireLocal = getEnvBool("COLDVOX_STT_REQUIRE_LOCAL", cfg.STT.RequireLocal)
	cfg.STT.MaxMemoryMB = getEnvInt("COLDVOX_STT_MAX_MEMORY_MB", cfg.STT.MaxMemoryMB)
	cfg.STT.RequiredLanguage = getEnv("COLDVOX_STT_REQUIRED_LANGUAGE", cfg.STT.RequiredLanguage)
	cfg.STT.Failover.Threshold = getEnvInt("COLDVOX_STT_FAILOVER_THRESHOLD", cfg.STT.Failover.Threshold)
	cfg.STT.Failover.CooldownSec = getEnvInt("COLDVOX_STT_FAILOVER_COOLDOWN_SECS", cfg.STT.Failover.CooldownSec)
	cfg.STT.GC.ModelTTLSec = getEnvInt("COLDVOX_STT_GC_MODEL_TTL_SECS", cfg.STT.GC.ModelTTLSec)
	cfg.STT.GC.Enabled = getEnvBool("COLDVOX_STT_GC_ENABLED", cfg.STT.GC.Enabled)
	if m := getEnv("COLDVOX_STT_MODE", string(cfg.STT.Mode)); m == string(STTModeBatch) {
		cfg.STT.Mode = STTModeBatch
	} else {
		cfg.STT.Mode = STTModeStreaming
	}
	cfg.STT.VoskModelPath = getEnv("COLDVOX_STT_VOSK_MODEL_PATH", cfg.STT.VoskModelPath)
	cfg.STT.WhisperModelPath = getEnv("COLDVOX_STT_WHISPER_MODEL_PATH", cfg.STT.WhisperModelPath)
	cfg.STT.CloudEndpoint = getEnv("COLDVOX_STT_CLOUD_ENDPOINT", cfg.STT.CloudEndpoint)
	cfg.STT.CloudAPIKey = getEnv("COLDVOX_STT_CLOUD_API_KEY", cfg.STT.CloudAPIKey)

	cfg.Injection.MaxTotalLatencyMs = getEnvInt("COLDVOX_INJECTION_MAX_TOTAL_LATENCY_MS", cfg.Injection.MaxTotalLatencyMs)
	cfg.Injection.PerMethodTimeoutMs = getEnvInt("COLDVOX_INJECTION_PER_METHOD_TIMEOUT_MS", cfg.Injection.PerMethodTimeoutMs)
	cfg.Injection.CooldownInitialMs = getEnvInt("COLDVOX_INJECTION_COOLDOWN_INITIAL_MS", cfg.Injection.CooldownInitialMs)
	cfg.Injection.CooldownBackoffFactor = getEnvFloat("COLDVOX_INJECTION_COOLDOWN_BACKOFF_FACTOR", cfg.Injection.CooldownBackoffFactor)
	cfg.Injection.CooldownMaxMs = getEnvInt("COLDVOX_INJECTION_COOLDOWN_MAX_MS", cfg.Injection.CooldownMaxMs)
	cfg.Injection.KeystrokeRateCPS = getEnvInt("COLDVOX_INJECTION_KEYSTROKE_RATE_CPS", cfg.Injection.KeystrokeRateCPS)
	cfg.Injection.AllowKeystroke = getEnvBool("COLDVOX_INJECTION_ALLOW_KEYSTROKE", cfg.Injection.AllowKeystroke)
	cfg.Injection.AllowWMAssist = getEnvBool("COLDVOX_INJECTION_ALLOW_WM_ASSIST", cfg.Injection.AllowWMAssist)
	cfg.Injection.AllowClipboard = getEnvBool("COLDVOX_INJECTION_ALLOW_CLIPBOARD", cfg.Injection.AllowClipboard)
	cfg.Injection.AllowAccessibility = getEnvBool("COLDVOX_INJECTION_ALLOW_ACCESSIBILITY", cfg.Injection.AllowAccessibility)
	cfg.Injection.RestoreClipboard = getEnvBool("COLDVOX_INJECTION_RESTORE_CLIPBOARD", cfg.Injection.RestoreClipboard)
	cfg.Injection.ClipboardRestoreDelay = getEnvInt("COLDVOX_INJECTION_CLIPBOARD_RESTORE_DELAY_MS", cfg.Injection.ClipboardRestoreDelay)
	cfg.Injection.RequireFocus = getEnvBool("COLDVOX_INJECTION_REQUIRE_FOCUS", cfg.Injection.RequireFocus)
	cfg.Injection.InjectOnUnknownFocus = getEnvBool("COLDVOX_INJECTION_INJECT_ON_UNKNOWN_FOCUS", cfg.Injection.InjectOnUnknownFocus)
	cfg.Injection.RedactLogs = getEnvBool("COLDVOX_INJECTION_REDACT_LOGS", cfg.Injection.RedactLogs)
	cfg.Injection.Allowlist = getEnvList("COLDVOX_INJECTION_ALLOWLIST", cfg.Injection.Allowlist)
	cfg.Injection.Blocklist = getEnvList("COLDVOX_INJECTION_BLOCKLIST", cfg.Injection.Blocklist)
	cfg.Injection.SilenceTimeoutMs = getEnvInt("COLDVOX_INJECTION_SILENCE_TIMEOUT_MS", cfg.Injection.SilenceTimeoutMs)

	cfg.Quality.RMSWindowMs = getEnvInt("COLDVOX_QUALITY_RMS_WINDOW_MS", cfg.Quality.RMSWindowMs)
	cfg.Quality.PeakHoldMs = getEnvInt("COLDVOX_QUALITY_PEAK_HOLD_MS", cfg.Quality.PeakHoldMs)
	cfg.Quality.ClippingDB = getEnvFloat("COLDVOX_QUALITY_CLIPPING_DB", cfg.Quality.ClippingDB)
	cfg.Quality.TooQuietDB = getEnvFloat("COLDVOX_QUALITY_TOO_QUIET_DB", cfg.Quality.TooQuietDB)
	cfg.Quality.OffAxisEnabled = getEnvBool("COLDVOX_QUALITY_OFF_AXIS_ENABLED", cfg.Quality.OffAxisEnabled)
	cfg.Quality.OffAxisThreshold = getEnvFloat("COLDVOX_QUALITY_OFF_AXIS_THRESHOLD", cfg.Quality.OffAxisThreshold)
	cfg.Quality.WarningCooldownMs = getEnvInt("COLDVOX_QUALITY_WARNING_COOLDOWN_MS", cfg.Quality.WarningCooldownMs)

	return cfg
}

// LoadYAML reads and parses a declarative config record from path, layering
// it over Default() so unspecified fields keep their production-safe
// values.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.ConfigValidation, "reading config file %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.Wrapf(err, apperr.ConfigValidation, "parsing config file %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold at startup; a violation is
// fatal per spec §7 (Config::Validation).
func (c *Config) Validate() error {
	if c.FrameSizeSamples <= 0 {
		return apperr.New(apperr.ConfigValidation, "frame_size_samples must be positive")
	}
	if c.SampleRateHz <= 0 {
		return apperr.New(apperr.ConfigValidation, "sample_rate_hz must be positive")
	}
	if c.VAD.MinSpeechMs < 0 || c.VAD.MinSilenceMs < 0 {
		return apperr.New(apperr.ConfigValidation, "vad debounce durations must be non-negative")
	}
	if c.VAD.Mode == VADModeNeural && c.VAD.ModelPath == "" {
		return apperr.New(apperr.ConfigValidation, "vad.model_path is required when vad.mode is neural")
	}
	if c.Injection.CooldownBackoffFactor < 1 {
		return apperr.New(apperr.ConfigValidation, "injection.cooldown_backoff_factor must be >= 1")
	}
	if len(c.Injection.Allowlist) > 0 && len(c.Injection.Blocklist) > 0 {
		seen := make(map[string]struct{}, len(c.Injection.Allowlist))
		for _, a := range c.Injection.Allowlist {
			seen[a] = struct{}{}
		}
		for _, b := range c.Injection.Blocklist {
			if _, ok := seen[b]; ok {
				return apperr.Newf(apperr.ConfigValidation, "app %q present in both allowlist and blocklist", b)
			}
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// String renders a redaction-safe summary, useful for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("Config{sample_rate=%d frame_size=%d vad.mode=%s stt.preferred=%s stt.mode=%s}",
		c.SampleRateHz, c.FrameSizeSamples, c.VAD.Mode, c.STT.Preferred, c.STT.Mode)
}
