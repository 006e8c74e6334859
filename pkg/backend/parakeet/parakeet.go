//go:build parakeet

// Package parakeet implements the on-device Parakeet ONNX batch backend,
// gated behind the "parakeet" build tag the same way the Silero VAD scorer
// is gated behind "silero" — onnxruntime_go needs its shared library
// present at link/run time, so plain `go build` must not require it.
//
// Grounded on nupi-ai-plugin-vad-local-silero's ONNX session lifecycle
// (sync.Once environment init, pre-allocated reused tensors, explicit
// Destroy on every tensor and the session itself) retargeted from a
// single-frame VAD model to a CTC acoustic model: one encoder session
// producing per-frame log-probabilities over a token vocabulary, decoded
// greedily with repeat/blank collapsing.
package parakeet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MrWong99/whisvoice/pkg/backend"
)

// CanonicalSampleRate is the sample rate Parakeet sub-chunking assumes, same
// as the rest of the pipeline.
const CanonicalSampleRate = 16000

// maxChunkSamples and overlapSamples implement spec's 90 s / 1 s hard split:
// segments longer than this are fed to the model in sub-chunks so memory
// stays bounded, with their decoded text concatenated with spaces.
const (
	maxChunkSamples = 90 * CanonicalSampleRate
	overlapSamples  = 1 * CanonicalSampleRate
)

const blankTokenID = 0

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

var _ backend.LocalTranscriber = (*Batch)(nil)

// Batch runs on-device inference against a Parakeet acoustic model exported
// to ONNX, loaded once from a model directory containing "model.onnx" and
// "tokens.txt" (one token per line, index == line number, index 0 reserved
// for the CTC blank symbol).
type Batch struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	vocab   []string

	inputTensor  *ort.Tensor[float32]
	lengthTensor *ort.Tensor[int64]
	outputTensor *ort.Tensor[float32]

	maxSamples int
}

// NewBatch loads the model directory's model.onnx and tokens.txt, allocates
// the input/output tensors sized for up to maxChunkSamples (90 s canonical),
// and initialises the shared ONNX Runtime environment on first use. libPath
// is the path to the onnxruntime shared library.
func NewBatch(modelDir, libPath string) (*Batch, error) {
	if modelDir == "" {
		return nil, &backend.ConfigError{Reason: "parakeet: model directory must not be empty"}
	}

	vocab, err := loadVocab(filepath.Join(modelDir, "tokens.txt"))
	if err != nil {
		return nil, &backend.ProviderError{Kind: backend.LocalModelError, Detail: "load vocabulary", Err: err}
	}

	ortInitOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, &backend.ProviderError{Kind: backend.LocalModelError, Detail: "initialize onnxruntime", Err: ortInitErr}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, maxChunkSamples))
	if err != nil {
		return nil, &backend.ProviderError{Kind: backend.LocalModelError, Detail: "create input tensor", Err: err}
	}
	lengthTensor, err := ort.NewTensor(ort.NewShape(1), []int64{0})
	if err != nil {
		inputTensor.Destroy()
		return nil, &backend.ProviderError{Kind: backend.LocalModelError, Detail: "create length tensor", Err: err}
	}
	// Output shape is an upper bound: one frame of log-probabilities per
	// 4 input samples (typical 4x subsampling), over the vocabulary.
	outFrames := maxChunkSamples/4 + 1
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(outFrames), int64(len(vocab))))
	if err != nil {
		inputTensor.Destroy()
		lengthTensor.Destroy()
		return nil, &backend.ProviderError{Kind: backend.LocalModelError, Detail: "create output tensor", Err: err}
	}

	session, err := ort.NewAdvancedSessionWithONNXFile(
		filepath.Join(modelDir, "model.onnx"),
		[]string{"audio_signal", "length"},
		[]string{"logprobs"},
		[]ort.Value{inputTensor, lengthTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		lengthTensor.Destroy()
		outputTensor.Destroy()
		return nil, &backend.ProviderError{Kind: backend.LocalModelError, Detail: "create session", Err: err}
	}

	return &Batch{
		session:      session,
		vocab:        vocab,
		inputTensor:  inputTensor,
		lengthTensor: lengthTensor,
		outputTensor: outputTensor,
		maxSamples:   maxChunkSamples,
	}, nil
}

// Transcribe runs Parakeet inference over input.Samples, splitting into
// overlapping 90 s sub-chunks first when the segment exceeds that length,
// per the memory-bound hard limit observed for this runtime.
func (b *Batch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Samples) == 0 {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Detail: "no samples supplied"}
	}

	chunks := splitIntoChunks(input.Samples, maxChunkSamples, overlapSamples)

	var parts []string
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", &backend.ProviderError{Kind: backend.LocalModelError, Err: err}
		}
		text, err := b.inferOne(chunk)
		if err != nil {
			return "", &backend.ProviderError{Kind: backend.LocalModelError, Err: err}
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// inferOne runs one forward pass over a single sub-chunk, serialised
// against every other call since the session's tensors are reused.
func (b *Batch) inferOne(samples []float32) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(samples) > b.maxSamples {
		samples = samples[:b.maxSamples]
	}

	buf := b.inputTensor.GetData()
	for i := range buf {
		if i < len(samples) {
			buf[i] = samples[i]
		} else {
			buf[i] = 0
		}
	}
	b.lengthTensor.GetData()[0] = int64(len(samples))

	if err := b.session.Run(); err != nil {
		return "", fmt.Errorf("parakeet: inference: %w", err)
	}

	framesUsed := len(samples)/4 + 1
	return greedyCTCDecode(b.outputTensor.GetData(), framesUsed, len(b.vocab), b.vocab), nil
}

// Close releases the ONNX Runtime session and all tensors. Safe to call
// more than once.
func (b *Batch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	if b.inputTensor != nil {
		b.inputTensor.Destroy()
		b.inputTensor = nil
	}
	if b.lengthTensor != nil {
		b.lengthTensor.Destroy()
		b.lengthTensor = nil
	}
	if b.outputTensor != nil {
		b.outputTensor.Destroy()
		b.outputTensor = nil
	}
	return nil
}

// loadVocab reads a newline-delimited token vocabulary file, index 0 being
// the CTC blank symbol.
func loadVocab(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("parakeet: empty vocabulary file %s", path)
	}
	return lines, nil
}

// splitIntoChunks splits samples into sub-chunks of at most maxLen, each
// sub-chunk (after the first) overlapping the previous by overlap samples.
func splitIntoChunks(samples []float32, maxLen, overlap int) [][]float32 {
	if len(samples) <= maxLen {
		return [][]float32{samples}
	}

	var chunks [][]float32
	start := 0
	for start < len(samples) {
		end := start + maxLen
		if end > len(samples) {
			end = len(samples)
		}
		chunks = append(chunks, samples[start:end])
		if end == len(samples) {
			break
		}
		start = end - overlap
	}
	return chunks
}

// greedyCTCDecode takes the per-frame log-probabilities, the number of
// valid frames, and the vocabulary size, and returns the decoded text:
// per-frame argmax, collapsing consecutive repeats and dropping the blank
// token, following standard CTC greedy decoding.
func greedyCTCDecode(logprobs []float32, frames, vocabSize int, vocab []string) string {
	var sb strings.Builder
	prev := -1
	for f := 0; f < frames; f++ {
		base := f * vocabSize
		if base+vocabSize > len(logprobs) {
			break
		}
		best := 0
		bestVal := logprobs[base]
		for v := 1; v < vocabSize; v++ {
			if logprobs[base+v] > bestVal {
				bestVal = logprobs[base+v]
				best = v
			}
		}
		if best != blankTokenID && best != prev {
			if best < len(vocab) {
				sb.WriteString(vocab[best])
			}
		}
		prev = best
	}
	return strings.TrimSpace(sb.String())
}
