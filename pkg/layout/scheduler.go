package layout

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/observability"
)

// Outcome is a delivered layout computation.
type Outcome struct {
	Ticket uint64
	Result Result
	Err    error
}

// Scheduler runs layout computations in goroutines and applies "last
// requested wins": an outcome is delivered only if no newer Submit happened
// on the same Scheduler before it resolved. Superseded outcomes are dropped
// and reported to observability.LayoutHooks.OnLayoutDiscarded.
//
// Deliveries are serialized and never go backwards: once ticket N has been
// delivered, no outcome with a ticket below N is delivered.
type Scheduler struct {
	engine Engine
	logger *log.Logger

	mu     sync.Mutex
	latest uint64

	deliverMu sync.Mutex
	delivered uint64

	wg sync.WaitGroup
}

// NewScheduler returns a scheduler for engine. A nil logger uses log.Default().
func NewScheduler(engine Engine, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{engine: engine, logger: logger}
}

// Submit starts computing req and returns its ticket. deliver is called from
// the computation goroutine, at most once, if the outcome is still current.
// It may call Submit again.
//
// The computation runs on a context detached from ctx's cancellation; ctx
// only contributes values.
func (s *Scheduler) Submit(ctx context.Context, req Request, deliver func(Outcome)) uint64 {
	s.mu.Lock()
	s.latest++
	ticket := s.latest
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		observability.Layout().OnLayoutStart(ctx, len(req.Nodes))
		start := time.Now()
		res, err := s.engine.Compute(ctx, req)
		observability.Layout().OnLayoutComplete(ctx, len(req.Nodes), time.Since(start), err)

		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
		if !s.current(ticket) || ticket <= s.delivered {
			s.logger.Debug("layout result superseded", "ticket", ticket)
			observability.Layout().OnLayoutDiscarded(ctx)
			return
		}
		s.delivered = ticket
		deliver(Outcome{Ticket: ticket, Result: res, Err: err})
	}()
	return ticket
}

// Latest returns the most recently issued ticket.
func (s *Scheduler) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Wait blocks until every submitted computation has finished or been
// discarded, including any submitted by deliver callbacks.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) current(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.latest
}
