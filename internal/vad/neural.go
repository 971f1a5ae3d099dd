package vad

import (
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/audio"
)

// onnxEnvOnce guards onnxruntime's process-wide environment initialization;
// every NeuralProbability instance shares it.
var onnxEnvOnce sync.Once
var onnxEnvErr error

func ensureONNXEnvironment() error {
	onnxEnvOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		onnxEnvErr = ort.InitializeEnvironment()
	})
	return onnxEnvErr
}

// NeuralProbabilityConfig configures the ONNX-backed VAD variant.
type NeuralProbabilityConfig struct {
	ModelPath    string
	Threshold    float64
	MinSpeechMs  int
	MinSilenceMs int
}

// NeuralProbability is the embedded-model VAD Capability (spec §4.4): it
// runs a speech-probability ONNX model over each 512-sample/16kHz frame and
// feeds the probability through the shared hysteresis machine.
type NeuralProbability struct {
	cfg     NeuralProbabilityConfig
	session *ort.DynamicAdvancedSession
	hys     *hysteresis

	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewNeuralProbability loads cfg.ModelPath and builds the inference session.
func NewNeuralProbability(cfg NeuralProbabilityConfig) (*NeuralProbability, error) {
	if err := ensureONNXEnvironment(); err != nil {
		return nil, apperr.Wrap(err, apperr.STTModelLoadFailed, "initializing onnxruntime environment")
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(audio.FrameSize)), make([]float32, audio.FrameSize))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.STTModelLoadFailed, "allocating onnx input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, apperr.Wrap(err, apperr.STTModelLoadFailed, "allocating onnx output tensor")
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input"},
		[]string{"output"},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, apperr.Wrapf(err, apperr.STTModelLoadFailed, "loading VAD model %s", cfg.ModelPath)
	}

	return &NeuralProbability{
		cfg:          cfg,
		session:      session,
		hys:          newHysteresis(cfg.MinSpeechMs, cfg.MinSilenceMs),
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Process implements Capability.
func (n *NeuralProbability) Process(frame audio.AudioFrame) (*Event, error) {
	if err := checkFrame(frame, audio.TargetSampleRate, audio.FrameSize); err != nil {
		return nil, err
	}

	in := n.inputTensor.GetData()
	for i, s := range frame.Samples {
		in[i] = float32(s) / 32768.0
	}

	if err := n.session.Run([]ort.Value{n.inputTensor}, []ort.Value{n.outputTensor}); err != nil {
		return nil, apperr.Wrap(err, apperr.VADProcessingFailed, "running VAD inference")
	}

	probability := float64(n.outputTensor.GetData()[0])
	candidate := probability >= n.cfg.Threshold

	return n.hys.advance(candidate, frame.TimestampMs, probabilityToDB(probability)), nil
}

// Reset implements Capability.
func (n *NeuralProbability) Reset() {
	n.hys.reset()
}

// RequiredRate implements Capability.
func (n *NeuralProbability) RequiredRate() uint32 { return audio.TargetSampleRate }

// RequiredFrameSize implements Capability.
func (n *NeuralProbability) RequiredFrameSize() int { return audio.FrameSize }

// Close releases the onnxruntime session and tensors.
func (n *NeuralProbability) Close() {
	n.session.Destroy()
	n.inputTensor.Destroy()
	n.outputTensor.Destroy()
}

func probabilityToDB(p float64) float64 {
	if p <= 0 {
		return -60
	}
	return 20 * math.Log10(p)
}
