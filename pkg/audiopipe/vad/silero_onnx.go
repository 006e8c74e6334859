//go:build silero

package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// sileroStateSize is the hidden-state dimension per layer for Silero VAD v5.
const sileroStateSize = 128

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroScorer runs Silero VAD v5 inference via ONNX Runtime, reusing the
// same session/tensor lifecycle as the standalone Silero VAD plugin this
// package is grounded on: tensors are allocated once and reused across
// calls, and the RNN hidden state is carried forward between frames exactly
// as the ring buffer model in the plugin does, but driven here per-frame by
// Detector instead of per-chunk by a gRPC adapter.
type SileroScorer struct {
	mu sync.Mutex

	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32] // [1, FrameSamples]
	stateTensor *ort.Tensor[float32] // [2, 1, sileroStateSize]
	srTensor    *ort.Tensor[int64]   // scalar sample rate

	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, sileroStateSize]
}

// NewSileroScorer loads the Silero VAD v5 ONNX model from modelData and
// returns a ready-to-use Scorer. modelData for the embedded model is looked
// up by the caller; libPath is the path to the onnxruntime shared library.
func NewSileroScorer(modelData []byte, libPath string) (*SileroScorer, error) {
	if len(modelData) == 0 {
		return nil, fmt.Errorf("vad: silero model data is empty")
	}

	ortInitOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("vad: initialize onnxruntime: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, FrameSamples))
	if err != nil {
		return nil, fmt.Errorf("vad: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("vad: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(FrameSamples * 1000 / 32)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("vad: create sample-rate tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("vad: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("vad: create stateN tensor: %w", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		modelData,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("vad: create session: %w", err)
	}

	return &SileroScorer{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
	}, nil
}

// Score runs one Silero VAD inference on exactly FrameSamples samples.
func (s *SileroScorer) Score(frame []float32) (float64, error) {
	if len(frame) != FrameSamples {
		return 0, fmt.Errorf("vad: silero requires exactly %d samples, got %d", FrameSamples, len(frame))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), frame)
	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: silero inference: %w", err)
	}
	prob := s.outputTensor.GetData()[0]
	copy(s.stateTensor.GetData(), s.stateNTensor.GetData())
	return float64(prob), nil
}

// Close releases the ONNX Runtime session and all tensors. Safe to call
// more than once.
func (s *SileroScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.stateTensor != nil {
		s.stateTensor.Destroy()
		s.stateTensor = nil
	}
	if s.srTensor != nil {
		s.srTensor.Destroy()
		s.srTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	if s.stateNTensor != nil {
		s.stateNTensor.Destroy()
		s.stateNTensor = nil
	}
	return nil
}
