// Package deepgram implements the Deepgram batch transcription backend (raw
// POST body to /v1/listen) and the Deepgram Realtime streaming backend,
// adapted from the teacher's own Deepgram streaming STT provider
// (pkg/provider/stt/deepgram) — same coder/websocket read/write loop split,
// generalised here to collect only is_final Results into one concatenated
// transcript instead of fanning partial/final events out to a caller.
package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/whisvoice/pkg/backend"
	"github.com/coder/websocket"
)

const (
	batchEndpoint     = "https://api.deepgram.com/v1/listen"
	streamEndpoint    = "wss://api.deepgram.com/v1/listen"
	batchModel        = "nova-2"
	idleKeepaliveTick = 5 * time.Second
	finalizeReadTO    = 30 * time.Second
)

var (
	_ backend.BatchTranscriber  = (*Batch)(nil)
	_ backend.StreamTranscriber = (*Realtime)(nil)
)

// Batch implements the Deepgram batch (raw-body) transcription endpoint.
type Batch struct {
	apiKey string
	client *http.Client
}

// NewBatch returns a ready-to-use Batch backend. apiKey must be non-empty.
func NewBatch(apiKey string) (*Batch, error) {
	if apiKey == "" {
		return nil, &backend.ProviderError{Kind: backend.MissingAPIKey}
	}
	return &Batch{apiKey: apiKey, client: &http.Client{Timeout: 300 * time.Second}}, nil
}

// Transcribe POSTs the raw audio bytes (not multipart) to /v1/listen.
func (b *Batch) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	if len(input.Bytes) == 0 {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "no audio bytes supplied"}
	}

	u, _ := url.Parse(batchEndpoint)
	q := u.Query()
	q.Set("model", batchModel)
	q.Set("smart_format", "true")
	if input.Language != "" {
		q.Set("language", input.Language)
	}
	u.RawQuery = q.Encode()

	contentType := input.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(string(input.Bytes)))
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	req.Header.Set("Authorization", "Token "+b.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &backend.ProviderError{Kind: backend.RateLimitExceeded, RetryAfter: parseRetryAfter(resp.Header)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &backend.ProviderError{Kind: backend.TranscriptionFailed, Detail: "parse response", Err: err}
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}

// parseRetryAfter reads the Retry-After header (seconds form, the only form
// Deepgram sends) and returns the wait hint as a Duration. Returns 0 if the
// header is absent or not a valid integer.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Realtime implements the Deepgram streaming transcription backend.
type Realtime struct {
	apiKey string
	batch  *Batch
}

// NewRealtime returns a Realtime backend, with its batch sibling for the
// streaming-backend-must-also-be-batch requirement.
func NewRealtime(apiKey string) (*Realtime, error) {
	b, err := NewBatch(apiKey)
	if err != nil {
		return nil, err
	}
	return &Realtime{apiKey: apiKey, batch: b}, nil
}

func (r *Realtime) Transcribe(ctx context.Context, input backend.BatchInput) (string, error) {
	return r.batch.Transcribe(ctx, input)
}

type resultsEvent struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	Error string `json:"error,omitempty"`
}

// TranscribeStream connects to Deepgram's streaming endpoint, sends binary
// PCM16 frames as audio arrives (with periodic KeepAlive on idle), sends
// Finalize on input close, and concatenates every is_final Results
// transcript with a space.
func (r *Realtime) TranscribeStream(ctx context.Context, in <-chan []float32, language string) (string, error) {
	u, _ := url.Parse(streamEndpoint)
	q := u.Query()
	q.Set("model", batchModel)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(16000))
	q.Set("channels", "1")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	if language != "" {
		q.Set("language", language)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Token " + r.apiKey}},
	})
	if err != nil {
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var mu sync.Mutex
	var parts []string
	errCh := make(chan error, 1)
	done := make(chan struct{})
	go readResultsLoop(conn, &mu, &parts, errCh, done)

	idle := time.NewTimer(idleKeepaliveTick)
	defer idle.Stop()

	for {
		select {
		case samples, ok := <-in:
			if !ok {
				if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`)); err != nil {
					return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
				}
				return awaitClose(&mu, &parts, errCh, done)
			}
			pcm16 := float32ToPCM16LE(samples)
			if err := conn.Write(ctx, websocket.MessageBinary, pcm16); err != nil {
				return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(idleKeepaliveTick)

		case <-idle.C:
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"KeepAlive"}`))
			idle.Reset(idleKeepaliveTick)

		case err := <-errCh:
			return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}

		case <-ctx.Done():
			return "", &backend.ProviderError{Kind: backend.NetworkError, Err: ctx.Err()}
		}
	}
}

func awaitClose(mu *sync.Mutex, parts *[]string, errCh chan error, done chan struct{}) (string, error) {
	timeout := time.NewTimer(finalizeReadTO)
	defer timeout.Stop()
	select {
	case <-done:
	case err := <-errCh:
		return "", &backend.ProviderError{Kind: backend.NetworkError, Err: err}
	case <-timeout.C:
	}
	mu.Lock()
	defer mu.Unlock()
	return strings.Join(*parts, " "), nil
}

func readResultsLoop(conn *websocket.Conn, mu *sync.Mutex, parts *[]string, errCh chan<- error, done chan<- struct{}) {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			close(done)
			return
		}
		var evt resultsEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		if evt.Error != "" {
			errCh <- fmt.Errorf("deepgram realtime: %s", evt.Error)
			return
		}
		if evt.Type != "Results" || !evt.IsFinal {
			continue
		}
		if len(evt.Channel.Alternatives) == 0 {
			continue
		}
		text := evt.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}
		mu.Lock()
		*parts = append(*parts, text)
		mu.Unlock()
	}
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
