package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	models []core.Model
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeLister) Models(ctx context.Context) ([]core.Model, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.models, f.err
}

func TestIsSupportedAllowList(t *testing.T) {
	// Allow-listed ids pass before any resolution happens; the lister hangs
	// to prove the check never waits on it.
	cache := NewModelCache(&fakeLister{delay: time.Hour}, WithLookupTimeout(time.Hour))

	for _, id := range []string{"o3", "o4-mini", "gemini-2.5-pro", "gemini-2.5-flash", ""} {
		assert.True(t, cache.IsSupported(context.Background(), id), "id %q", id)
	}
}

func TestIsSupportedResolvedSet(t *testing.T) {
	lister := &fakeLister{models: []core.Model{{ID: "gemini-2.0-flash"}, {ID: "gemini-1.5-pro"}}}
	cache := NewModelCache(lister)

	assert.True(t, cache.IsSupported(context.Background(), "gemini-2.0-flash"))
	assert.False(t, cache.IsSupported(context.Background(), "nonexistent-model-xyz"))
}

func TestIsSupportedTimeoutDegradesToTrue(t *testing.T) {
	lister := &fakeLister{delay: time.Hour}
	cache := NewModelCache(lister, WithLookupTimeout(20*time.Millisecond))

	start := time.Now()
	assert.True(t, cache.IsSupported(context.Background(), "nonexistent-model-xyz"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsSupportedEmptyResolution(t *testing.T) {
	tests := []struct {
		name   string
		lister *fakeLister
	}{
		{"missing credential", &fakeLister{err: ErrMissingCredential}},
		{"network failure", &fakeLister{err: errors.New("connection refused")}},
		{"empty model list", &fakeLister{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewModelCache(tt.lister)
			// Empty means "unknown, do not block".
			assert.True(t, cache.IsSupported(context.Background(), "anything-at-all"))
		})
	}
}

func TestModelsSingleFlight(t *testing.T) {
	lister := &fakeLister{
		models: []core.Model{{ID: "b"}, {ID: "a"}},
		delay:  20 * time.Millisecond,
	}
	cache := NewModelCache(lister)

	var wg sync.WaitGroup
	results := make([][]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Models(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load(), "concurrent callers must share one fetch")
	for _, got := range results {
		assert.Equal(t, []string{"a", "b"}, got)
	}
}

func TestFailedResolutionIsCached(t *testing.T) {
	lister := &fakeLister{err: errors.New("boom")}
	cache := NewModelCache(lister)

	require.Empty(t, cache.Models(context.Background()))
	require.Empty(t, cache.Models(context.Background()))

	assert.Equal(t, int32(1), lister.calls.Load(), "a failed fetch is never retried")
}

func TestPreloadWarmsCache(t *testing.T) {
	lister := &fakeLister{models: []core.Model{{ID: "m1"}}}
	cache := NewModelCache(lister)

	cache.Preload(context.Background())

	assert.Eventually(t, func() bool {
		return lister.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"m1"}, cache.Models(context.Background()))
	assert.Equal(t, int32(1), lister.calls.Load())
}
