// Package modelcache provides a process-wide lazy singleton per on-device
// model path: the first caller for a path pays the load cost, every
// subsequent caller (and every concurrent second caller racing the first)
// gets the same handle. This generalises the teacher's "one whisper.cpp
// model, loaded once in NewNative, shared across all sessions" pattern
// (pkg/provider/stt/whisper/native.go) from a single hard-coded engine to N
// models of two engine kinds keyed by path, and borrows the
// sync.Once-guarded global initialisation idiom the Silero ONNX plugin uses
// for its runtime environment.
package modelcache

import (
	"fmt"
	"sync"
)

// Loader loads a model from path into a handle of the caller's own type.
// The returned value is wrapped in a Handle and shared; Loader is called at
// most once per distinct path.
type Loader func(path string) (any, error)

// Handle is a shared, mutex-serialised wrapper around
// one loaded model. The underlying inference engines are not thread-safe,
// so every call into the model must hold mu for the duration of the call.
type Handle struct {
	mu    sync.Mutex
	value any
	err   error
	ready chan struct{}
}

// Value blocks until the load completes, then returns the loaded model (as
// an `any` the caller type-asserts) or the load error.
func (h *Handle) Value() (any, error) {
	<-h.ready
	return h.value, h.err
}

// Use runs fn with exclusive access to the loaded model, blocking until any
// in-flight load completes. fn receives the load error and must check it
// before touching model.
func (h *Handle) Use(fn func(model any, err error) error) error {
	model, err := h.Value()
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(model, err)
}

// Cache is a process-wide registry of Handles keyed by model path.
// Exposed as a package-level default instance via Get/Preload, but callers
// that want test isolation can construct their own.
type Cache struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{handles: make(map[string]*Handle)}
}

// Get returns the shared Handle for path, loading it via loader on first
// access. A concurrent second call for the same path returns the same
// Handle without invoking loader again, waiting on the first load's
// completion only when Value/Use is called, not when Get itself is called.
func (c *Cache) Get(path string, loader Loader) (*Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("modelcache: empty path")
	}

	c.mu.Lock()
	h, ok := c.handles[path]
	if ok {
		c.mu.Unlock()
		return h, nil
	}

	h = &Handle{ready: make(chan struct{})}
	c.handles[path] = h
	c.mu.Unlock()

	go func() {
		defer close(h.ready)
		h.value, h.err = loader(path)
	}()

	return h, nil
}

// Preload fires off Get on a background goroutine for path, returning
// immediately, so a model can load while recording is still under way.
// Neither cmd/whisvoice nor pkg/pipeline calls it; without it, a model
// loads on the first call that needs it.
func (c *Cache) Preload(path string, loader Loader) {
	go func() {
		h, err := c.Get(path, loader)
		if err != nil {
			return
		}
		_, _ = h.Value()
	}()
}

// Len reports how many distinct model paths are currently cached, for
// diagnostics and tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}
