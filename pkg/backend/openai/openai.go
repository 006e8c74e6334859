// Package openai implements the OpenAI batch transcription backend
// (Whisper-1 over multipart HTTPS) and the OpenAI Realtime streaming
// backend, following the same coder/websocket session shape the teacher
// uses for its s2s Realtime provider (pkg/provider/s2s/openai), but driving
// it for transcription-only input instead of full-duplex voice.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/MrWong99/whisvoice/pkg/backend/internal/wireutil"
	"github.com/coder/websocket"
)

const (
	batchEndpoint    = "https://api.openai.com/v1/audio/transcriptions"
	realtimeURL      = "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview"
	batchModel       = "whisper-1"
	realtimeReadTO   = 30 * time.Second
	streamSampleRate = 24000
	canonicalRate    = 16000
)

// Compile-time assertions.
var (
	_ backend.BatchTranscriber  = (*Batch)(nil)
	_ backend.StreamTranscriber = (*Realtime)(nil)
	_ backend.Prober            = (*Batch)(nil)
)

// Batch implements the OpenAI Whisper-1 multipart batch endpoint.
type Batch struct {
	apiKey string
	client *http.Client
}

// NewBatch validates the key format (must start with "sk-") and returns a
// ready-to-use Batch backend.
func NewBatch(apiKey string) (*Batch, error) {
	if apiKey == "" {
		return nil, &backend.ProviderError{Kind: backend.MissingAPIKey}
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		return nil, &backend.ProviderError{Kind: backend.InvalidAPIKey, Detail: `openai keys must start with "sk-"`}
	}
	return &Batch{apiKey: apiKey, client: &http.Client{Timeout: 300 * time.Second}}, nil
}

// Probe issues a minimal authenticated request to verify connectivity
// before the first real segment arrives.
func (b *Batch) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.openai.com/v1/models", nil)
	if err != nil {
		return &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	resp, err := b.client.Do(req)
	if err != nil {
		return &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	defer resp.Body.Close()
	return nil
}

// Transcribe performs one multipart POST to /v1/audio/transcriptions.
func (b *Batch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Bytes) == 0 {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "no audio bytes supplied"}
	}

	fields := []wireutil.MultipartField{
		{Name: "model", Value: batchModel},
		{Name: "language", Value: input.Language},
	}
	headers := map[string]string{"Authorization": "Bearer " + b.apiKey}

	data, status, respHeaders, err := wireutil.PostAudioMultipart(ctx, b.client, batchEndpoint, input.Bytes, fields, headers)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	if status == http.StatusTooManyRequests {
		return "", &backend.ProviderError{Kind: backend.RateLimitExceeded, RetryAfter: wireutil.ParseRetryAfter(respHeaders)}
	}
	if status != http.StatusOK {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: fmt.Sprintf("http %d: %s", status, data)}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "parse response", Err: err}
	}
	return result.Text, nil
}

// Realtime implements the OpenAI Realtime streaming transcription backend.
// It delegates batch calls to a Batch sibling, satisfying the backend
// contract's "streaming backend must also expose batch" requirement.
type Realtime struct {
	apiKey string
	batch  *Batch
}

// NewRealtime returns a Realtime backend. apiKey must start with "sk-".
func NewRealtime(apiKey string) (*Realtime, error) {
	b, err := NewBatch(apiKey)
	if err != nil {
		return nil, err
	}
	return &Realtime{apiKey: apiKey, batch: b}, nil
}

// Transcribe delegates to the batch sibling.
func (r *Realtime) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	return r.batch.Transcribe(ctx, input)
}

type sessionUpdateMsg struct {
	Type    string         `json:"type"`
	Session sessionParams  `json:"session"`
}

type sessionParams struct {
	InputAudioFormat        string         `json:"input_audio_format"`
	InputAudioTranscription map[string]any `json:"input_audio_transcription"`
	TurnDetection           any            `json:"turn_detection"`
}

type appendAudioMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type serverEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// TranscribeStream connects to the OpenAI Realtime API, streams in (resampled
// 16kHz -> 24kHz by linear interpolation, f32 -> PCM16 LE) until it closes,
// commits, and returns the final transcript from the
// conversation.item.input_audio_transcription.completed event.
func (r *Realtime) TranscribeStream(ctx context.Context, in <-chan []float32, language string) (string, error) {
	conn, _, err := websocket.Dial(ctx, realtimeURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + r.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	update := sessionUpdateMsg{
		Type: "session.update",
		Session: sessionParams{
			InputAudioFormat:        "pcm16",
			InputAudioTranscription: map[string]any{"model": "whisper-1"},
			TurnDetection:           nil,
		},
	}
	if err := writeJSON(ctx, conn, update); err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}

	transcriptCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go readLoop(conn, transcriptCh, errCh)

	// The completed-transcription event may arrive before or after the
	// commit/response.create pair, so it is captured here whichever order
	// it shows up in.
	var earlyTranscript string
	var haveEarly bool

	for {
		select {
		case samples, ok := <-in:
			if !ok {
				if err := writeJSON(ctx, conn, map[string]string{"type": "input_audio_buffer.commit"}); err != nil {
					return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
				}
				if err := writeJSON(ctx, conn, map[string]string{"type": "response.create"}); err != nil {
					return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
				}
				if haveEarly {
					return earlyTranscript, nil
				}
				return awaitFinal(transcriptCh, errCh)
			}
			pcm24 := resampleLinear16to24(samples)
			pcm16 := float32ToPCM16LE(pcm24)
			if err := writeJSON(ctx, conn, appendAudioMsg{
				Type:  "input_audio_buffer.append",
				Audio: base64.StdEncoding.EncodeToString(pcm16),
			}); err != nil {
				return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
			}

		case err := <-errCh:
			return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}

		case text := <-transcriptCh:
			earlyTranscript = text
			haveEarly = true

		case <-ctx.Done():
			return "", &backend.ProviderError{Kind: backend.NetworkError, Err: ctx.Err()}
		}
	}
}

func awaitFinal(transcriptCh chan string, errCh chan error) (string, error) {
	timeout := time.NewTimer(realtimeReadTO)
	defer timeout.Stop()
	select {
	case text := <-transcriptCh:
		return text, nil
	case err := <-errCh:
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	case <-timeout.C:
		return "", &backend.ProviderError{Kind: backend.NetworkError, Detail: "realtime read timeout"}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func readLoop(conn *websocket.Conn, transcriptCh chan<- string, errCh chan<- error) {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			errCh <- err
			return
		}
		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		switch evt.Type {
		case "error":
			msg := "unknown error"
			if evt.Error != nil {
				msg = evt.Error.Message
			}
			errCh <- fmt.Errorf("openai realtime: %s", msg)
			return
		case "conversation.item.input_audio_transcription.completed":
			transcriptCh <- evt.Transcript
		}
	}
}

// resampleLinear16to24 upsamples 16kHz mono samples to 24kHz by linear
// interpolation (ratio 1.5), per the wire contract.
func resampleLinear16to24(samples []float32) []float32 {
	if len(samples) == 0 {
		return nil
	}
	outLen := int(float64(len(samples)) * float64(streamSampleRate) / canonicalRate)
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) * canonicalRate / streamSampleRate
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		out[i] = float32(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

func float32ToPCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		i16 := int16(v * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(i16))
	}
	return out
}
