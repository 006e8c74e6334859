// Package wireutil holds the small pieces of wire-format plumbing shared by
// more than one cloud batch backend (multipart audio upload and Retry-After
// parsing). Kept internal to pkg/backend: each backend
// package still owns its own endpoint, field names, and response parsing,
// following the teacher's one-file-per-provider convention in
// pkg/provider/stt/whisper/whisper.go — only the literal byte-shuffling
// that OpenAI, Mistral, Groq, and ElevenLabs batch transcription share
// verbatim is factored out here.
package wireutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// MultipartField is one extra form field beyond the audio file itself.
type MultipartField struct {
	Name  string
	Value string
}

// PostAudioMultipart POSTs audioBytes as a multipart/form-data file field
// named "file" (filename "audio.mp3"), plus any extra fields, to url, with
// the given header set applied (typically just Authorization or an API-key
// header), and returns the response body bytes, status code, and response
// headers (so callers can read a Retry-After hint on a 429).
func PostAudioMultipart(ctx context.Context, client *http.Client, url string, audioBytes []byte, fields []MultipartField, headers map[string]string) ([]byte, int, http.Header, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.mp3")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("wireutil: create form file: %w", err)
	}
	if _, err := fw.Write(audioBytes); err != nil {
		return nil, 0, nil, fmt.Errorf("wireutil: write audio data: %w", err)
	}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, 0, nil, fmt.Errorf("wireutil: write field %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, 0, nil, fmt.Errorf("wireutil: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("wireutil: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("wireutil: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, resp.Header, fmt.Errorf("wireutil: read response body: %w", err)
	}
	return data, resp.StatusCode, resp.Header, nil
}

// ParseRetryAfter reads the Retry-After header (seconds form, the form every
// backend this package talks to sends) and returns the wait hint as a
// Duration. Returns 0 if the header is absent or not a valid integer.
func ParseRetryAfter(h http.Header) time.Duration {
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
