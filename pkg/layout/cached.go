package layout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/cache"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/observability"
)

const cacheKeyType = "layout"

// CachedEngine memoizes a wrapped engine. Layout is a pure function of the
// request, so the key is a hash of the request's canonical JSON encoding.
// Incomplete results and errors are never cached.
//
// Cache backend failures are logged and fall through to the wrapped engine.
type CachedEngine struct {
	inner  Engine
	cache  cache.Cache
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedEngine wraps inner. A nil logger uses log.Default().
func NewCachedEngine(inner Engine, c cache.Cache, ttl time.Duration, logger *log.Logger) *CachedEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &CachedEngine{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func (e *CachedEngine) Compute(ctx context.Context, req Request) (Result, error) {
	if missing := Unmeasured(req.Nodes); len(missing) > 0 {
		return e.inner.Compute(ctx, req)
	}

	key, err := cache.Key(cacheKeyType, req)
	if err != nil {
		return e.inner.Compute(ctx, req)
	}

	if data, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn("layout cache read failed", "error", err)
	} else if ok {
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return res, nil
		}
		_ = e.cache.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)

	res, err := e.inner.Compute(ctx, req)
	if err != nil || res.Incomplete {
		return res, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := e.cache.Set(ctx, key, data, e.ttl); err != nil {
			e.logger.Warn("layout cache write failed", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
		}
	}
	return res, nil
}

var _ Engine = (*CachedEngine)(nil)
