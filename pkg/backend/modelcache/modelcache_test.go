package modelcache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_LoadsOncePerPath(t *testing.T) {
	c := New()
	var loadCount int32

	loader := func(path string) (any, error) {
		atomic.AddInt32(&loadCount, 1)
		time.Sleep(10 * time.Millisecond)
		return "model:" + path, nil
	}

	var wg sync.WaitGroup
	results := make([]any, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.Get("/models/a.bin", loader)
			require.NoError(t, err)
			v, err := h.Value()
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loadCount))
	for _, r := range results {
		assert.Equal(t, "model:/models/a.bin", r)
	}
	assert.Equal(t, 1, c.Len())
}

func TestGet_DistinctPathsLoadIndependently(t *testing.T) {
	c := New()
	loader := func(path string) (any, error) { return path, nil }

	h1, err := c.Get("/a", loader)
	require.NoError(t, err)
	h2, err := c.Get("/b", loader)
	require.NoError(t, err)

	v1, _ := h1.Value()
	v2, _ := h2.Value()
	assert.Equal(t, "/a", v1)
	assert.Equal(t, "/b", v2)
	assert.Equal(t, 2, c.Len())
}

func TestGet_EmptyPathReturnsError(t *testing.T) {
	c := New()
	_, err := c.Get("", func(string) (any, error) { return nil, nil })
	require.Error(t, err)
}

func TestGet_PropagatesLoadError(t *testing.T) {
	c := New()
	wantErr := fmt.Errorf("boom")
	h, err := c.Get("/bad", func(string) (any, error) { return nil, wantErr })
	require.NoError(t, err)

	_, loadErr := h.Value()
	assert.ErrorIs(t, loadErr, wantErr)
}

func TestUse_SerializesAccess(t *testing.T) {
	c := New()
	h, err := c.Get("/model", func(string) (any, error) { return 0, nil })
	require.NoError(t, err)

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Use(func(model any, err error) error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxActive)
					if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive, "Use must serialise access to the model")
}

func TestPreload_WarmsCacheInBackground(t *testing.T) {
	c := New()
	loaded := make(chan struct{})
	c.Preload("/model", func(path string) (any, error) {
		close(loaded)
		return path, nil
	})

	select {
	case <-loaded:
	case <-time.After(time.Second):
		t.Fatal("preload did not invoke loader")
	}
}
