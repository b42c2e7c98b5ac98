package config

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/cache"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/generate"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/store"
)

// OpenStore connects the configured store backend.
func (c Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.Store.Backend {
	case StoreMemory:
		return store.NewMemory(), nil
	case StoreFile:
		dir, err := c.DataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		return store.NewFile(dir)
	case StoreRedis:
		return store.NewRedis(ctx, store.RedisConfig{
			Addr:     c.Store.RedisAddr,
			Password: c.Store.RedisPassword,
			DB:       c.Store.RedisDB,
		})
	case StoreMongo:
		return store.NewMongo(ctx, c.Store.MongoURI, c.Store.MongoDatabase)
	}
	return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
}

// NewGenerator builds the configured content generator.
func (c Config) NewGenerator(logger *log.Logger) (generate.Generator, error) {
	switch c.Generator.Backend {
	case GeneratorOffline:
		return generate.Offline{Delay: c.Generator.Delay}, nil
	case GeneratorHTTP:
		return generate.NewClient(c.Generator.Endpoint, c.Generator.APIKey, c.Generator.Timeout,
			generate.WithRetry(c.Generator.Retries, time.Second),
			generate.WithLogger(logger),
		)
	}
	return nil, fmt.Errorf("unknown generator backend %q", c.Generator.Backend)
}

// NewLayoutCache opens the configured layout cache.
func (c Config) NewLayoutCache(ctx context.Context) (cache.Cache, error) {
	switch c.Layout.Cache {
	case CacheNull:
		return cache.NewNullCache(), nil
	case CacheFile:
		dir, err := c.CacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	case CacheRedis:
		return cache.NewRedisCache(ctx, c.Layout.RedisURL, "learnmap:layout:")
	}
	return nil, fmt.Errorf("unknown layout cache %q", c.Layout.Cache)
}

// NewLayoutEngine returns the Graphviz engine behind the configured cache.
func (c Config) NewLayoutEngine(ctx context.Context, logger *log.Logger) (layout.Engine, cache.Cache, error) {
	lc, err := c.NewLayoutCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	return layout.NewCachedEngine(layout.NewGraphvizEngine(), lc, c.Layout.CacheTTL, logger), lc, nil
}

// Resources bundles what a session needs. Close releases everything it
// opened.
type Resources struct {
	Store   store.Store
	Cache   cache.Cache
	Options session.Options
}

// Open builds session options from the configuration. The returned options
// have no Subject; callers set it or pass them to session.NewManager.
// Sessions size nodes with projection.DefaultEstimator unless the caller
// clears Measurer.
func (c Config) Open(ctx context.Context, logger *log.Logger) (*Resources, error) {
	st, err := c.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	gen, err := c.NewGenerator(logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	engine, lc, err := c.NewLayoutEngine(ctx, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open layout cache: %w", err)
	}
	return &Resources{
		Store: st,
		Cache: lc,
		Options: session.Options{
			ModuleTitle:       c.Generator.ModuleTitle,
			ModuleDescription: c.Generator.ModuleDescription,
			Store:             st,
			Generator:         gen,
			Engine:            engine,
			Direction:         c.Direction(),
			Spacing:           c.Spacing(),
			Measurer:          projection.DefaultEstimator,
			Logger:            logger,
		},
	}, nil
}

func (r *Resources) Close() error {
	cerr := r.Cache.Close()
	if err := r.Store.Close(); err != nil {
		return err
	}
	return cerr
}
