package layout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/cache"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
)

// gatedEngine blocks each computation until the test releases it by the
// id of the request's first node.
type gatedEngine struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls int
}

func newGatedEngine(ids ...string) *gatedEngine {
	e := &gatedEngine{gates: make(map[string]chan struct{})}
	for _, id := range ids {
		e.gates[id] = make(chan struct{})
	}
	return e
}

func (e *gatedEngine) release(id string) { close(e.gates[id]) }

func (e *gatedEngine) Compute(ctx context.Context, req Request) (Result, error) {
	e.mu.Lock()
	e.calls++
	gate := e.gates[req.Nodes[0].ID]
	e.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return Result{Positions: map[string]learnmap.Position{req.Nodes[0].ID: {X: 1, Y: 1}}}, nil
}

func single(id string) Request {
	return Request{Nodes: []Node{{ID: id, Width: 10, Height: 10}}}
}

type recorder struct {
	mu  sync.Mutex
	got []uint64
}

func (r *recorder) deliver(o Outcome) {
	r.mu.Lock()
	r.got = append(r.got, o.Ticket)
	r.mu.Unlock()
}

func TestSchedulerDeliversSingle(t *testing.T) {
	s := NewScheduler(newGatedEngine(), nil)
	var rec recorder
	ticket := s.Submit(context.Background(), single("a"), rec.deliver)
	s.Wait()

	if len(rec.got) != 1 || rec.got[0] != ticket {
		t.Errorf("delivered %v, want [%d]", rec.got, ticket)
	}
}

func TestSchedulerLastRequestedWins(t *testing.T) {
	tests := []struct {
		name  string
		first string // which computation resolves first
	}{
		{"newer resolves first", "new"},
		{"older resolves first", "old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newGatedEngine("old", "new")
			s := NewScheduler(e, nil)
			var rec recorder

			s.Submit(context.Background(), single("old"), rec.deliver)
			newTicket := s.Submit(context.Background(), single("new"), rec.deliver)

			if tt.first == "new" {
				e.release("new")
				time.Sleep(10 * time.Millisecond)
				e.release("old")
			} else {
				e.release("old")
				time.Sleep(10 * time.Millisecond)
				e.release("new")
			}
			s.Wait()

			if len(rec.got) != 1 || rec.got[0] != newTicket {
				t.Errorf("delivered %v, want only [%d]", rec.got, newTicket)
			}
		})
	}
}

func TestSchedulerResubmitFromDeliver(t *testing.T) {
	s := NewScheduler(newGatedEngine(), nil)
	var rec recorder
	var once sync.Once

	var deliver func(Outcome)
	deliver = func(o Outcome) {
		rec.deliver(o)
		once.Do(func() { s.Submit(context.Background(), single("b"), deliver) })
	}
	s.Submit(context.Background(), single("a"), deliver)
	s.Wait()

	if len(rec.got) != 2 {
		t.Errorf("delivered %v, want two outcomes", rec.got)
	}
	if s.Latest() != 2 {
		t.Errorf("Latest() = %d, want 2", s.Latest())
	}
}

func TestSchedulerIgnoresCallerCancellation(t *testing.T) {
	e := newGatedEngine("a")
	s := NewScheduler(e, nil)
	var rec recorder

	ctx, cancel := context.WithCancel(context.Background())
	s.Submit(ctx, single("a"), rec.deliver)
	cancel()
	e.release("a")
	s.Wait()

	if len(rec.got) != 1 {
		t.Errorf("cancelled caller context dropped the outcome: %v", rec.got)
	}
}

type countingEngine struct {
	calls int
	res   Result
	err   error
}

func (e *countingEngine) Compute(ctx context.Context, req Request) (Result, error) {
	e.calls++
	if missing := Unmeasured(req.Nodes); len(missing) > 0 {
		return incomplete(missing), nil
	}
	return e.res, e.err
}

func TestCachedEngine(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	inner := &countingEngine{res: Result{
		Positions: map[string]learnmap.Position{"A1": {X: 3, Y: 4}},
		Width:     10,
		Height:    20,
	}}
	e := NewCachedEngine(inner, fc, time.Hour, nil)
	ctx := context.Background()

	first, err := e.Compute(ctx, chain())
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Compute(ctx, chain())
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("inner engine called %d times, want 1", inner.calls)
	}
	if second.Positions["A1"] != first.Positions["A1"] || second.Height != 20 {
		t.Errorf("cached result = %+v, want %+v", second, first)
	}

	other := chain()
	other.Direction = LeftToRight
	if _, err := e.Compute(ctx, other); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("different request should miss the cache (calls=%d)", inner.calls)
	}
}

func TestCachedEngineSkipsIncompleteAndErrors(t *testing.T) {
	fc, _ := cache.NewFileCache(t.TempDir())
	ctx := context.Background()

	inner := &countingEngine{}
	e := NewCachedEngine(inner, fc, 0, nil)
	req := chain()
	req.Nodes[0].Width = 0
	for i := 0; i < 2; i++ {
		res, err := e.Compute(ctx, req)
		if err != nil || !res.Incomplete {
			t.Fatalf("Compute() = %+v, %v", res, err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("incomplete results must not be cached (calls=%d)", inner.calls)
	}

	failing := &countingEngine{err: errors.New(errors.ErrCodeLayout, "boom")}
	e = NewCachedEngine(failing, fc, 0, nil)
	for i := 0; i < 2; i++ {
		if _, err := e.Compute(ctx, chain()); !errors.Is(err, errors.ErrCodeLayout) {
			t.Fatalf("error = %v", err)
		}
	}
	if failing.calls != 2 {
		t.Errorf("errors must not be cached (calls=%d)", failing.calls)
	}
}
