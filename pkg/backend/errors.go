package backend

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError reports a problem detected at session start, before the
// pipeline ever transitions out of Idle: missing credentials, an
// unconfigured model path, or an invalid key format.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("backend: config: %s", e.Reason) }

// AudioReason enumerates the ways the capture stage can fail.
type AudioReason int

const (
	DeviceNotFound AudioReason = iota
	RecordingFailed
	EncodingFailed
)

func (r AudioReason) String() string {
	switch r {
	case DeviceNotFound:
		return "device_not_found"
	case RecordingFailed:
		return "recording_failed"
	case EncodingFailed:
		return "encoding_failed"
	default:
		return "unknown"
	}
}

// AudioError reports a capture-stage failure. These are fatal: the session
// transitions to Idle with this error.
type AudioError struct {
	Reason AudioReason
	Err    error
}

func (e *AudioError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: audio: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("backend: audio: %s", e.Reason)
}
func (e *AudioError) Unwrap() error { return e.Err }

// ProviderErrorKind enumerates the per-segment provider failure variants
// from the backend contract.
type ProviderErrorKind int

const (
	MissingAPIKey ProviderErrorKind = iota
	InvalidAPIKey
	RateLimitExceeded
	NetworkError
	TranscriptionFailed
	LocalModelError
)

func (k ProviderErrorKind) String() string {
	switch k {
	case MissingAPIKey:
		return "missing_api_key"
	case InvalidAPIKey:
		return "invalid_api_key"
	case RateLimitExceeded:
		return "rate_limit_exceeded"
	case NetworkError:
		return "network_error"
	case TranscriptionFailed:
		return "transcription_failed"
	case LocalModelError:
		return "local_model_error"
	default:
		return "unknown"
	}
}

// ProviderError reports a per-segment transcription failure. Detail
// carries the InvalidApiKey reason or the TranscriptionFailed/LocalModelError
// detail message, depending on Kind. RetryAfter is populated when the
// backend supplied a Retry-After hint alongside RateLimitExceeded; the core
// never auto-retries on it, but surfaces it for the caller.
type ProviderError struct {
	Kind       ProviderErrorKind
	Detail     string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("backend: provider: %s", e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}
func (e *ProviderError) Unwrap() error { return e.Err }

// FailedSegment names one segment that failed dispatch, for inclusion in a
// DispatchError.
type FailedSegment struct {
	Index int
	Err   error
}

// DispatchError is the composite failure surfaced by the dispatcher when
// one or more segments failed in cloud-batch or batch-local mode.
type DispatchError struct {
	Failed []FailedSegment
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("backend: dispatch: %d segment(s) failed", len(e.Failed))
}

// PostProcessError is non-fatal: the raw transcript is delivered and this
// error is surfaced only as a warning, never propagated as the session's
// terminal error.
type PostProcessError struct {
	Err error
}

func (e *PostProcessError) Error() string { return fmt.Sprintf("backend: post-process: %v", e.Err) }
func (e *PostProcessError) Unwrap() error { return e.Err }

// ErrNotSupported is returned by a backend operation that the concrete
// implementation does not provide (e.g. calling TranscribeStream on a
// batch-only backend).
var ErrNotSupported = errors.New("backend: operation not supported by this backend")
