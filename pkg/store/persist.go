package store

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/observability"
)

// Persist saves every entity touched by a mutation of g to s, followed by the
// map header whenever its UpdatedAt has moved. It returns a function that
// stops persisting.
//
// Saves run synchronously inside the graph's event delivery, so they happen
// in mutation order. Failures are logged and reported to the store hooks;
// the in-memory graph stays authoritative. EventInitialized is ignored since
// the snapshot came from the store.
func Persist(ctx context.Context, g *learnmap.Graph, s Store, logger *log.Logger) func() {
	if logger == nil {
		logger = log.Default()
	}
	ctx = context.WithoutCancel(ctx)

	var mu sync.Mutex
	saved := g.Map().UpdatedAt

	return g.Subscribe(func(ev learnmap.Event) {
		if ev.Kind == learnmap.EventInitialized {
			return
		}
		for _, id := range ev.IDs {
			if a, ok := g.Article(id); ok {
				save(ctx, logger, "article", id, func() error { return s.SaveArticle(ctx, a) })
				continue
			}
			if q, ok := g.Question(id); ok {
				save(ctx, logger, "question", id, func() error { return s.SaveQuestion(ctx, q) })
			}
		}

		lm := g.Map()
		mu.Lock()
		defer mu.Unlock()
		if !lm.UpdatedAt.After(saved) {
			return
		}
		saved = lm.UpdatedAt
		save(ctx, logger, "map", lm.ID, func() error { return s.SaveMap(ctx, lm) })
	})
}

func save(ctx context.Context, logger *log.Logger, entity, id string, fn func() error) {
	start := time.Now()
	err := fn()
	observability.Store().OnSave(ctx, entity, time.Since(start), err)
	if err != nil {
		logger.Error("persist failed", "entity", entity, "id", id, "error", err)
	}
}
