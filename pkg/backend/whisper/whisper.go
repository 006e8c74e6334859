// Package whisper implements the on-device whisper.cpp batch backend. It
// adapts the teacher's two whisper.cpp provider variants — the HTTP
// whisper-server client and the CGO native binding — from their own
// internal silence-segmentation loop to the externally-driven,
// one-segment-at-a-time calling convention the rest of pkg/backend uses,
// sharing the loaded model (native variant only) through
// pkg/backend/modelcache so repeated segments reuse the same weights.
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/modelcache"
)

const bitsPerSample = 16

var (
	_ backend.LocalTranscriber = (*HTTPBatch)(nil)
	_ backend.LocalTranscriber = (*NativeBatch)(nil)
)

// ---- HTTP whisper-server variant -------------------------------------------

// HTTPBatch transcribes against a running whisper-server binary's
// POST /inference endpoint. Each call encodes the supplied samples as a WAV
// file and uploads it; no state is shared across calls.
type HTTPBatch struct {
	serverURL string
	model     string
	client    *http.Client
}

// NewHTTPBatch returns a ready-to-use HTTPBatch backend. serverURL must be
// non-empty, e.g. "http://localhost:8080". model is an optional model-name
// hint forwarded to the server; when empty the server uses whichever model
// it was started with.
func NewHTTPBatch(serverURL, model string) (*HTTPBatch, error) {
	if serverURL == "" {
		return nil, &backend.ConfigError{Reason: "whisper: serverURL must not be empty"}
	}
	return &HTTPBatch{
		serverURL: serverURL,
		model:     model,
		client:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Transcribe encodes input.Samples as 16-bit PCM WAV and POSTs it to the
// whisper-server /inference endpoint.
func (b *HTTPBatch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Samples) == 0 {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Detail: "no samples supplied"}
	}

	wav := encodeWAV(samplesToPCM16LE(input.Samples), sampleRateFor(input), 1)

	data, status, err := postMultipartWAV(ctx, b.client, b.serverURL+"/inference", wav, b.model, input.Language)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	if status != http.StatusOK {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Detail: fmt.Sprintf("whisper-server returned http %d: %s", status, data)}
	}

	text, err := parseTextField(data)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Detail: "parse response", Err: err}
	}
	return text, nil
}

// Close is a no-op: HTTPBatch holds no local resources of its own, only an
// *http.Client.
func (b *HTTPBatch) Close() error { return nil }

func sampleRateFor(input backend.BatchInput) int {
	return 16000
}

// ---- native CGO variant ----------------------------------------------------

// NativeBatch transcribes using the whisper.cpp CGO bindings against a
// model shared process-wide through modelcache, so multiple NativeBatch
// instances (or repeated segments through the same one) pay the model-load
// cost exactly once per distinct model path.
type NativeBatch struct {
	cache    *modelcache.Cache
	path     string
	language string
}

// NewNativeBatch returns a ready-to-use NativeBatch backend. cache is the
// shared model cache the coordinator constructs once at startup; path is
// the whisper.cpp ggml model file to load on first use.
func NewNativeBatch(cache *modelcache.Cache, path, language string) (*NativeBatch, error) {
	if path == "" {
		return nil, &backend.ConfigError{Reason: "whisper: model path must not be empty"}
	}
	return &NativeBatch{cache: cache, path: path, language: language}, nil
}

func loadWhisperModel(path string) (any, error) {
	model, err := whisperlib.New(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", path, err)
	}
	return model, nil
}

// Transcribe runs one whisper.cpp inference call against input.Samples
// (canonical 16 kHz mono float32), serialised against every other call
// sharing the same model handle.
func (b *NativeBatch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Samples) == 0 {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Detail: "no samples supplied"}
	}

	handle, err := b.cache.Get(b.path, loadWhisperModel)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Err: err}
	}

	lang := input.Language
	if lang == "" {
		lang = b.language
	}

	var text string
	useErr := handle.Use(func(model any, loadErr error) error {
		if loadErr != nil {
			return loadErr
		}
		m, ok := model.(whisperlib.Model)
		if !ok {
			return errors.New("whisper: cached value is not a whisper.Model")
		}

		wctx, err := m.NewContext()
		if err != nil {
			return fmt.Errorf("whisper: create context: %w", err)
		}
		if lang != "" {
			_ = wctx.SetLanguage(lang)
		}
		if err := wctx.Process(input.Samples, nil, nil, nil); err != nil {
			return fmt.Errorf("whisper: process audio: %w", err)
		}

		var parts []string
		for {
			segment, err := wctx.NextSegment()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("whisper: read segment: %w", err)
			}
			if t := strings.TrimSpace(segment.Text); t != "" {
				parts = append(parts, t)
			}
		}
		text = strings.Join(parts, " ")
		return nil
	})
	if useErr != nil {
		return "", &backend.ProviderError{Kind: backend.LocalModelError, Err: useErr}
	}
	return text, nil
}

// Close releases nothing: the model handle is owned by the shared cache for
// the lifetime of the process, not by any one NativeBatch instance.
func (b *NativeBatch) Close() error { return nil }

// ---- shared wire helpers ----------------------------------------------------

// postMultipartWAV uploads a WAV file to a whisper-server /inference
// endpoint, following the teacher's whisper.go multipart construction
// (file field "file", optional "language"/"model" hint fields).
func postMultipartWAV(ctx context.Context, client *http.Client, url string, wav []byte, model, language string) ([]byte, int, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, 0, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, 0, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, 0, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if model != "" {
		if err := mw.WriteField("model", model); err != nil {
			return nil, 0, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, 0, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, 0, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("whisper: read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// parseTextField extracts the "text" field from a whisper-server JSON
// response body.
func parseTextField(data []byte) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// samplesToPCM16LE converts canonical float32 samples (range [-1, 1]) to
// 16-bit signed little-endian PCM.
func samplesToPCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v*32767)))
	}
	return out
}
