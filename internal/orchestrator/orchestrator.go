// Package orchestrator wires the engine's components into the data flow
// described in spec §2: Capture -> ring -> Frame Reader -> Chunker ->
// broadcast[AudioFrame] -> {VAD, STT Processor, Quality Monitor}, with VAD
// events feeding the STT Processor and its transcription events feeding
// the Injection Session, which flushes through the Strategy Manager.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/audio"
	"github.com/coldvox/engine/internal/config"
	"github.com/coldvox/engine/internal/injection"
	"github.com/coldvox/engine/internal/quality"
	"github.com/coldvox/engine/internal/stt"
	"github.com/coldvox/engine/internal/stt/sttcloud"
	"github.com/coldvox/engine/internal/stt/sttvosk"
	"github.com/coldvox/engine/internal/stt/sttwhisper"
	"github.com/coldvox/engine/internal/vad"
)

// ringCapacitySamples sizes the SPSC ring well above a handful of typical
// device-callback bursts (spec §3: power of two, >= 4 bursts) without
// needing to know the platform's exact callback size up front.
const ringCapacitySamples = 16384

const broadcastCap = 64

// Engine owns every pipeline component and runs their cooperative tasks
// (spec §5) for the lifetime of one Start/Stop cycle.
type Engine struct {
	cfg *config.Config

	capture   *audio.Capture
	broadcast *audio.FrameBroadcaster

	vadCap      vad.Capability
	vadEvents   chan vad.Event
	modeChanges chan config.STTMode

	sttManager *stt.Manager
	processor  *stt.Processor

	qualityMon *quality.Monitor

	injManager *injection.Manager
	session    *injection.Session

	accessibility *injection.AccessibilityBackend

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles every component from cfg but does not open the audio
// device or start any task; call Start for that.
func New(cfg *config.Config) (*Engine, error) {
	capturer, err := audio.NewCapture(ringCapacitySamples)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.AudioFatal, "constructing capture")
	}

	vadCap, err := buildVAD(cfg.VAD)
	if err != nil {
		return nil, err
	}

	sttManager, err := buildSTTManager(cfg.STT)
	if err != nil {
		return nil, err
	}

	injManager, accessibility := buildInjectionManager(cfg.Injection)

	e := &Engine{
		cfg:         cfg,
		capture:     capturer,
		broadcast:   audio.NewFrameBroadcaster(broadcastCap),
		vadCap:      vadCap,
		vadEvents:   make(chan vad.Event, 8),
		modeChanges: make(chan config.STTMode, 1),
		sttManager:  sttManager,
		processor:   stt.NewProcessor(sttManager, cfg.STT.Mode),
		qualityMon:  quality.New(cfg.SampleRateHz, cfg.Quality),
		injManager:  injManager,
		accessibility: accessibility,
	}
	e.session = injection.NewSession(injManager, time.Duration(cfg.Injection.SilenceTimeoutMs)*time.Millisecond)

	return e, nil
}

func buildVAD(cfg config.VADConfig) (vad.Capability, error) {
	if cfg.Mode == config.VADModeNeural {
		return vad.NewNeuralProbability(vad.NeuralProbabilityConfig{
			ModelPath:    cfg.ModelPath,
			Threshold:    cfg.Threshold,
			MinSpeechMs:  cfg.MinSpeechMs,
			MinSilenceMs: cfg.MinSilenceMs,
		})
	}
	hysCfg := vad.DefaultEnergyHysteresisConfig()
	hysCfg.OnsetDB = cfg.OnsetDB
	hysCfg.OffsetDB = cfg.OffsetDB
	hysCfg.MinSpeechMs = cfg.MinSpeechMs
	hysCfg.MinSilenceMs = cfg.MinSilenceMs
	hysCfg.EMAAlpha = cfg.EMAAlpha
	return vad.NewEnergyHysteresis(hysCfg), nil
}

// buildSTTManager registers every plugin factory whose configuration is
// present; CheckRequirements (spec §4.5) decides eligibility at Start, so
// an unset model path simply removes that plugin from the candidate list
// rather than failing here.
func buildSTTManager(cfg config.STTConfig) (*stt.Manager, error) {
	var factories []stt.Factory
	if cfg.VoskModelPath != "" {
		factories = append(factories, sttvosk.NewFactory(cfg.VoskModelPath))
	}
	if cfg.WhisperModelPath != "" {
		factories = append(factories, sttwhisper.NewFactory(cfg.WhisperModelPath))
	}
	if cfg.CloudEndpoint != "" && !cfg.RequireLocal {
		factories = append(factories, sttcloud.NewFactory(cfg.CloudEndpoint, cfg.CloudAPIKey))
	}
	if len(factories) == 0 {
		return nil, apperr.New(apperr.ConfigValidation, "no stt plugin factories configured (set stt.vosk_model_path, stt.whisper_model_path, or stt.cloud_endpoint)")
	}
	return stt.NewManager(cfg, factories...), nil
}

// buildInjectionManager wires every enabled backend behind the Strategy
// Manager, per spec §6's allow_* permission flags. The accessibility
// backend is returned separately since it doubles as the focus checker
// and, when available, the paste-trigger for the clipboard backend.
func buildInjectionManager(cfg config.InjectionConfig) (*injection.Manager, *injection.AccessibilityBackend) {
	backends := make(map[injection.Method]injection.Backend)

	var accessibility *injection.AccessibilityBackend
	if cfg.AllowAccessibility {
		accessibility = injection.NewAccessibilityBackend()
		backends[injection.AccessibilityInsert] = accessibility
	}

	keystroke := injection.NewKeystrokeBackend(cfg)
	if cfg.AllowKeystroke {
		backends[injection.KeystrokeSimulation] = keystroke
	}

	if cfg.AllowClipboard {
		var paster injection.Paster
		if accessibility != nil {
			paster = accessibility
		} else if cfg.AllowKeystroke {
			paster = injection.NewKeystrokePaster(keystroke)
		}
		if paster != nil {
			backends[injection.ClipboardAndPaste] = injection.NewClipboardAndPasteBackend(cfg, paster)
		}
		backends[injection.ClipboardOnly] = injection.NewClipboardOnlyBackend(cfg)
	}

	if cfg.AllowWMAssist {
		delegate := backends[injection.ClipboardAndPaste]
		if delegate == nil {
			delegate = backends[injection.AccessibilityInsert]
		}
		if delegate != nil {
			backends[injection.WindowManagerAssist] = injection.NewWMAssistBackend(delegate)
		}
	}

	var focusChecker injection.FocusChecker = staticUnknownFocus{}
	if accessibility != nil {
		focusChecker = accessibility
	}
	focus := injection.NewFocusTracker(focusChecker, injection.DefaultFocusCacheTTL)

	manager := injection.NewManager(cfg, injection.NewWindowManagerResolver(), focus, injection.NewProber(), backends)
	return manager, accessibility
}

// staticUnknownFocus is the FocusChecker used when accessibility is
// disabled: every query reports UnknownFocus, letting
// inject_on_unknown_focus govern behavior (spec §4.8 step 3).
type staticUnknownFocus struct{}

func (staticUnknownFocus) FocusStatus(context.Context) (injection.FocusStatus, error) {
	return injection.UnknownFocus, nil
}

// Events returns the transcription event stream, useful for a UI layer
// that wants partials outside the injection session.
func (e *Engine) Events() <-chan stt.TranscriptionEvent { return e.processor.Events() }

// SetMode requests a runtime STT mode change (spec §4.6).
func (e *Engine) SetMode(mode config.STTMode) {
	select {
	case e.modeChanges <- mode:
	default:
		slog.Warn("orchestrator: mode change dropped, channel full")
	}
}

// Start opens the audio device and launches every cooperative task. It
// returns once the device is open; the pipeline runs in background
// goroutines until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if _, err := e.capture.Start(runCtx, e.cfg.DeviceHint); err != nil {
		cancel()
		return err
	}

	if err := e.sttManager.Start(); err != nil {
		cancel()
		e.capture.Stop()
		return err
	}

	reader := audio.NewFrameReader(e.capture.Consumer(), audio.TargetSampleRate)
	chunker := audio.NewChunker(reader, e.broadcast, audio.DefaultChunkerConfig())

	vadSub := e.broadcast.Subscribe()
	qualitySub := e.broadcast.Subscribe()
	sttSub := e.broadcast.Subscribe()

	e.spawn(func() { chunker.Run(runCtx) })
	e.spawn(func() { e.runVAD(runCtx, vadSub) })
	e.spawn(func() { e.runQuality(runCtx, qualitySub) })
	e.spawn(func() {
		defer sttSub.Close()
		e.processor.Run(runCtx, sttSub, e.vadEvents, e.modeChanges)
	})
	e.spawn(func() { e.session.Run(runCtx, e.processor.Events()) })

	if e.cfg.STT.GC.Enabled {
		e.spawn(func() { e.sttManager.RunGC(runCtx) })
	}

	slog.Info("orchestrator started", "config", e.cfg.String())
	return nil
}

func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// runVAD subscribes to the audio broadcast, runs every frame through the
// configured VAD capability, and forwards emitted events to the
// processor's mpsc channel (spec §4.4, §5).
func (e *Engine) runVAD(ctx context.Context, sub *audio.Subscription) {
	defer sub.Close()
	defer close(e.vadEvents)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			ev, err := e.vadCap.Process(frame)
			if err != nil {
				slog.Error("vad processing failed", "error", err)
				continue
			}
			if ev == nil {
				continue
			}
			select {
			case e.vadEvents <- *ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runQuality subscribes to the audio broadcast and logs rate-limited
// quality warnings (spec §4.10).
func (e *Engine) runQuality(ctx context.Context, sub *audio.Subscription) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			status := e.qualityMon.Analyze(frame)
			if status.NeedsWarning() && e.qualityMon.ShouldWarn(time.Now()) {
				slog.Warn("audio quality warning", "message", status.Message(), "kind", status.Warning.String())
			}
		}
	}
}

// Stop finalizes the in-flight utterance, flushes the injection session,
// and tears down every task (spec §6 exit behavior, §5 cancellation).
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e.session.End(stopCtx)

	e.capture.Stop()
	if e.accessibility != nil {
		e.accessibility.Close()
	}
	e.wg.Wait()
	slog.Info("orchestrator stopped")
}
