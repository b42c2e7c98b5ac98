// Package session wires a learning map together for one subject.
//
// A [Session] loads the map from a [store.Store], keeps it saved as it
// changes, drives navigation and content generation through a
// [navigation.Controller], and lays the map out with a [layout.Scheduler].
// Renderers read a [projection.Visualization] and subscribe to updates.
//
// # Usage
//
//	sess, err := session.Open(ctx, session.Options{
//	    Subject:  "golang",
//	    Store:    store.NewMemory(),
//	    Measurer: projection.DefaultEstimator,
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	stop := sess.Subscribe(func(vis projection.Visualization) { render(vis) })
//	defer stop()
//
// A [Manager] keeps one Session per subject for servers.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/generate"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/navigation"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/store"
)

// Options configures a Session.
type Options struct {
	Subject           string
	ModuleTitle       string
	ModuleDescription string

	// Store is required.
	Store store.Store

	// Generator defaults to generate.Offline.
	Generator generate.Generator

	// Engine defaults to the Graphviz engine.
	Engine    layout.Engine
	Direction layout.Direction
	Spacing   layout.Spacing

	// Measurer sizes nodes the renderer has not measured. When set, the
	// session also re-lays out the map after every graph mutation.
	Measurer projection.Measurer

	Logger *log.Logger
}

// Session is one learner's view of one subject. It is safe for concurrent
// use.
type Session struct {
	opts  Options
	log   *log.Logger
	graph *learnmap.Graph
	ctrl  *navigation.Controller
	sched *layout.Scheduler
	ctx   context.Context

	mu    sync.Mutex
	sizes map[string]projection.Size

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(projection.Visualization)

	stops     []func()
	closeOnce sync.Once
}

// Open loads the subject's map, seeding a root placeholder for a new map,
// and starts generating the root content when it is still empty.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "session needs a store")
	}
	if err := errors.ValidateSubjectID(opts.Subject); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Engine == nil {
		opts.Engine = layout.NewGraphvizEngine()
	}
	logger := opts.Logger.With("subject", opts.Subject)

	snap, err := opts.Store.Load(ctx, opts.Subject)
	if err != nil {
		return nil, err
	}
	if len(snap.Articles) == 0 {
		now := time.Now().UTC()
		root := learnmap.Article{
			ID:            learnmap.NewID(),
			LearningMapID: snap.Map.ID,
			IsRoot:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := opts.Store.SaveArticle(ctx, root); err != nil {
			return nil, err
		}
		snap.Articles = []learnmap.Article{root}
		logger.Debug("seeded root article", "id", root.ID)
	}

	g := learnmap.New()
	if err := g.Initialize(snap); err != nil {
		return nil, err
	}

	s := &Session{
		opts:  opts,
		log:   logger,
		graph: g,
		sched: layout.NewScheduler(opts.Engine, logger),
		ctx:   context.WithoutCancel(ctx),
		sizes: make(map[string]projection.Size),
		subs:  make(map[int]func(projection.Visualization)),
	}
	s.ctrl = navigation.New(g, navigation.Options{
		Subject:           opts.Subject,
		ModuleTitle:       opts.ModuleTitle,
		ModuleDescription: opts.ModuleDescription,
		Generator:         opts.Generator,
		Logger:            logger,
	})
	s.stops = append(s.stops,
		store.Persist(ctx, g, opts.Store, logger),
		g.Subscribe(s.onGraphEvent),
		s.ctrl.Subscribe(func(projection.UIState) { s.publish() }),
	)

	logger.Info("session opened", "map", snap.Map.ID, "articles", len(snap.Articles), "questions", len(snap.Questions))

	if err := s.ctrl.StartRoot(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if s.auto() {
		s.Relayout(ctx)
	}
	return s, nil
}

// Subject returns the session's subject id.
func (s *Session) Subject() string { return s.opts.Subject }

// Map returns the learning map header.
func (s *Session) Map() learnmap.LearningMap { return s.graph.Map() }

// Graph returns the underlying graph.
func (s *Session) Graph() *learnmap.Graph { return s.graph }

// Controller returns the navigation controller.
func (s *Session) Controller() *navigation.Controller { return s.ctrl }

// Visualization projects the current map and navigation state.
func (s *Session) Visualization() projection.Visualization {
	return projection.Project(s.graph, nil, s.ctrl.UIState())
}

// Subscribe registers fn to receive a fresh visualization after every graph
// change, navigation change and applied layout. It returns a function that
// unsubscribes.
func (s *Session) Subscribe(fn func(projection.Visualization)) func() {
	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Session) publish() {
	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(projection.Visualization), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.subsMu.Unlock()
	if len(fns) == 0 {
		return
	}

	vis := s.Visualization()
	for _, fn := range fns {
		fn(vis)
	}
}

func (s *Session) onGraphEvent(ev learnmap.Event) {
	if ev.Kind != learnmap.EventPositionsApplied && s.auto() {
		s.Relayout(s.ctx)
	}
	s.publish()
}

func (s *Session) auto() bool { return s.opts.Measurer != nil }

// Measure records node sizes reported by the renderer. Sizes that are not
// measured (zero width or height) are ignored. With a Measurer configured,
// a relayout follows.
func (s *Session) Measure(sizes map[string]projection.Size) {
	s.mu.Lock()
	for id, size := range sizes {
		if size.Measured() {
			s.sizes[id] = size
		}
	}
	s.mu.Unlock()

	if s.auto() {
		s.Relayout(s.ctx)
	}
}

// Relayout lays out the current map in the background and returns the
// request's ticket. Only the most recent request is applied; a failed or
// incomplete layout leaves positions untouched.
func (s *Session) Relayout(ctx context.Context) uint64 {
	s.graph.ClearDirty()
	vis := s.Visualization()

	s.mu.Lock()
	sizes := projection.FillSizes(vis, s.sizes, s.opts.Measurer)
	s.mu.Unlock()

	req := projection.ToLayoutRequest(vis, sizes, s.opts.Direction, s.opts.Spacing)
	return s.sched.Submit(ctx, req, s.applyLayout)
}

func (s *Session) applyLayout(o layout.Outcome) {
	switch {
	case o.Err != nil:
		s.log.Warn("layout failed", "ticket", o.Ticket, "error", o.Err)
	case o.Result.Incomplete:
		s.log.Debug("layout incomplete", "ticket", o.Ticket, "missing", o.Result.Missing)
	default:
		changed := s.graph.ApplyPositions(o.Result.Positions)
		s.log.Debug("layout applied", "ticket", o.Ticket, "nodes", len(o.Result.Positions), "changed", len(changed))
		if len(changed) == 0 {
			s.publish()
		}
	}
}

// Wait blocks until running generations and the layouts they trigger have
// finished.
func (s *Session) Wait() {
	s.ctrl.Wait()
	s.sched.Wait()
}

// Close waits for background work and detaches the session from its graph.
// The store stays open; it belongs to the caller.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.Wait()
		for _, stop := range s.stops {
			stop()
		}
		s.subsMu.Lock()
		clear(s.subs)
		s.subsMu.Unlock()
	})
	return nil
}
