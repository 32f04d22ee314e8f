package llm

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/pkg/log"
)

const defaultLookupTimeout = 2 * time.Second

// DefaultModelAllowList holds recommended default model ids that must pass an
// availability check even before the cache resolves.
var DefaultModelAllowList = []string{
	"o3",
	"o4-mini",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
}

// ModelCache memoizes the backend's supported model identifiers for the
// process lifetime. The fetch runs at most once; concurrent first callers
// share the same in-flight resolution. A failed fetch is cached as an empty
// set rather than retried, and an empty set never blocks a model from being
// attempted.
type ModelCache struct {
	lister  core.ModelLister
	timeout time.Duration
	allow   map[string]struct{}

	once sync.Once
	done chan struct{}

	mu     sync.RWMutex
	models map[string]struct{}
}

type ModelCacheOption func(*ModelCache)

// WithLookupTimeout bounds how long IsSupported races the in-flight fetch
// before degrading to the optimistic default.
func WithLookupTimeout(d time.Duration) ModelCacheOption {
	return func(c *ModelCache) { c.timeout = d }
}

func WithAllowList(ids []string) ModelCacheOption {
	return func(c *ModelCache) {
		c.allow = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			c.allow[id] = struct{}{}
		}
	}
}

func NewModelCache(lister core.ModelLister, opts ...ModelCacheOption) *ModelCache {
	c := &ModelCache{
		lister:  lister,
		timeout: defaultLookupTimeout,
		done:    make(chan struct{}),
	}
	WithAllowList(DefaultModelAllowList)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preload triggers the fetch without waiting for it.
func (c *ModelCache) Preload(ctx context.Context) {
	go c.resolve(ctx)
}

// Models returns the resolved set, waiting for the fetch to complete. The
// result is empty when no credential is configured or the fetch failed.
func (c *ModelCache) Models(ctx context.Context) []string {
	go c.resolve(ctx)

	select {
	case <-c.done:
	case <-ctx.Done():
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.models))
	for id := range c.models {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsSupported reports whether a model id is acceptable. Empty and
// allow-listed ids are trivially supported. If the fetch has not completed
// within the lookup timeout the check degrades to supported; a resolved
// empty set means "unknown" and also degrades to supported.
func (c *ModelCache) IsSupported(ctx context.Context, modelID string) bool {
	if modelID == "" {
		return true
	}
	if _, ok := c.allow[modelID]; ok {
		return true
	}

	go c.resolve(ctx)

	select {
	case <-c.done:
	case <-time.After(c.timeout):
		return true
	case <-ctx.Done():
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.models) == 0 {
		return true
	}
	_, ok := c.models[modelID]
	return ok
}

// resolve performs the fetch exactly once. The fetch is detached from the
// triggering caller's cancellation so a short-lived request cannot poison
// the process-wide result.
func (c *ModelCache) resolve(ctx context.Context) {
	c.once.Do(func() {
		defer close(c.done)

		logger := log.FromCtx(ctx)
		fetchCtx := context.WithoutCancel(ctx)

		models, err := c.lister.Models(fetchCtx)
		if err != nil {
			if errors.Is(err, ErrMissingCredential) {
				logger.Warn().Msg("no api credential configured, model availability unknown")
			} else {
				logger.Error().Err(err).Msg("failed to fetch available models")
			}
			c.store(nil)
			return
		}

		set := make(map[string]struct{}, len(models))
		for _, m := range models {
			set[m.ID] = struct{}{}
		}
		c.store(set)
		logger.Debug().Int("count", len(set)).Msg("model availability resolved")
	})
}

func (c *ModelCache) store(set map[string]struct{}) {
	c.mu.Lock()
	c.models = set
	c.mu.Unlock()
}
