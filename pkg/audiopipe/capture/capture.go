// Package capture opens a system microphone via malgo (cross-platform
// miniaudio bindings) and streams the device's native-format float32 PCM
// out on a channel, mirroring the device-selection and callback-driven capture loop
// the teacher uses for its own soundcard source, generalised from a
// push-based audiocore.AudioSource into the pull-style channel contract the
// rest of this pipeline expects.
package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// DeviceError reports a failure to enumerate, select, or initialize a
// capture device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("capture: %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Device describes one enumerated capture device.
type Device struct {
	Name      string
	ID        string
	IsDefault bool
}

// Config selects the capture device and buffering behaviour. The capture
// rate need not be 16 kHz mono: Stream emits whatever native format the
// device reports, leaving resampling to pkg/audiopipe/resample.
type Config struct {
	// DeviceName selects a device by exact name, partial name, or ID.
	// Empty or "default" picks the system default input device.
	DeviceName string

	// SampleRate is the rate requested from the device. Zero selects 48000,
	// the rate most backends natively support.
	SampleRate uint32

	// Channels is the channel count requested from the device. Zero
	// selects 1 (mono).
	Channels uint32

	// FrameCapacity bounds the number of in-flight audio chunks buffered
	// between the malgo callback and the consumer. Zero selects 64.
	FrameCapacity int
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.FrameCapacity == 0 {
		c.FrameCapacity = 64
	}
	return c
}

// Chunk is one batch of interleaved float32 samples delivered by the
// capture device, at Stream's configured SampleRate/Channels.
type Chunk struct {
	Samples []float32
}

// Stream owns one open malgo capture device. A Stream is not reusable after
// Stop: construct a new one to capture again.
type Stream struct {
	cfg Config

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	out    chan Chunk
	errs   chan error
	cancel context.CancelFunc

	running atomic.Bool
	mu      sync.Mutex

	actualRate     uint32
	actualChannels uint32
}

// EnumerateDevices lists available capture devices for the host platform,
// skipping the null/discard pseudo-device.
func EnumerateDevices() ([]Device, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, &DeviceError{Op: "backend", Err: err}
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init_context", Err: err}
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, &DeviceError{Op: "enumerate", Err: err}
	}

	devices := make([]Device, 0, len(infos))
	for i := range infos {
		devices = append(devices, Device{
			Name:      infos[i].Name(),
			ID:        infos[i].ID.String(),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// Start opens the configured device and begins streaming. Capture runs
// until ctx is cancelled or Stop is called. The returned Stream's Chunks
// channel is closed once capture has fully stopped.
func Start(ctx context.Context, cfg Config) (*Stream, error) {
	cfg = cfg.withDefaults()

	backend, err := backendForPlatform()
	if err != nil {
		return nil, &DeviceError{Op: "backend", Err: err}
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init_context", Err: err}
	}

	deviceInfo, err := selectDevice(malgoCtx, cfg.DeviceName)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = cfg.Channels
	deviceConfig.Capture.DeviceID = deviceInfo.ID.Pointer()
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	s := &Stream{
		cfg:  cfg,
		ctx:  malgoCtx,
		out:  make(chan Chunk, cfg.FrameCapacity),
		errs: make(chan error, cfg.FrameCapacity),
	}

	captureCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		cancel()
		_ = malgoCtx.Uninit()
		return nil, &DeviceError{Op: "init_device", Err: err}
	}
	s.device = device
	s.actualRate = device.SampleRate()
	s.actualChannels = cfg.Channels

	if err := device.Start(); err != nil {
		device.Uninit()
		cancel()
		_ = malgoCtx.Uninit()
		return nil, &DeviceError{Op: "start_device", Err: err}
	}

	s.running.Store(true)
	go s.awaitCancel(captureCtx)

	return s, nil
}

// Chunks returns the channel of captured audio. Closed once the stream has
// stopped.
func (s *Stream) Chunks() <-chan Chunk { return s.out }

// Errors returns a channel of non-fatal capture errors (e.g. a dropped
// frame because the consumer fell behind, or an unexpected device stop).
func (s *Stream) Errors() <-chan error { return s.errs }

// SampleRate reports the device's actual negotiated sample rate, which may
// differ from the requested Config.SampleRate.
func (s *Stream) SampleRate() uint32 { return s.actualRate }

// Channels reports the stream's channel count.
func (s *Stream) Channels() uint32 { return s.actualChannels }

// Stop halts capture and releases the device and context. Safe to call
// more than once; safe to call concurrently with cancellation of the ctx
// passed to Start.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx = nil
	}

	close(s.out)
	close(s.errs)
	return nil
}

func (s *Stream) awaitCancel(ctx context.Context) {
	<-ctx.Done()
	_ = s.Stop()
}

// onData is the malgo data callback. It runs on malgo's audio thread, so it
// must not block: a full output channel drops the chunk and reports it on
// Errors instead.
func (s *Stream) onData(_, pSamples []byte, frameCount uint32) {
	samples := bytesToFloat32(pSamples, int(frameCount)*int(s.cfg.Channels))
	chunk := Chunk{Samples: samples}

	select {
	case s.out <- chunk:
	default:
		select {
		case s.errs <- fmt.Errorf("capture: output channel full, dropped %d frames", frameCount):
		default:
		}
	}
}

func (s *Stream) onStop() {
	slog.Warn("capture device stopped unexpectedly")
	select {
	case s.errs <- fmt.Errorf("capture: device stopped unexpectedly"):
	default:
	}
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, fmt.Errorf("unsupported operating system %q", runtime.GOOS)
	}
}

func selectDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, &DeviceError{Op: "enumerate", Err: err}
	}
	if len(infos) == 0 {
		return nil, &DeviceError{Op: "select", Err: fmt.Errorf("no capture devices found")}
	}

	if name == "" || name == "default" {
		for i := range infos {
			if infos[i].IsDefault == 1 {
				return &infos[i], nil
			}
		}
		return &infos[0], nil
	}

	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	for i := range infos {
		if containsFold(infos[i].Name(), name) {
			return &infos[i], nil
		}
	}

	return nil, &DeviceError{Op: "select", Err: fmt.Errorf("no device matching %q", name)}
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 || nl > hl {
		return false
	}
	for i := 0; i+nl <= hl; i++ {
		if equalFold(haystack[i:i+nl], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// bytesToFloat32 reinterprets a little-endian float32 PCM byte buffer as
// samples, capped at n samples.
func bytesToFloat32(b []byte, n int) []float32 {
	if n > len(b)/4 {
		n = len(b) / 4
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
