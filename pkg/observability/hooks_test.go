package observability

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	g := NoopGenerationHooks{}
	g.OnGenerationStart(ctx, GenerationFollowUp, "go")
	g.OnGenerationComplete(ctx, GenerationFollowUp, "go", time.Second, nil)

	l := NoopLayoutHooks{}
	l.OnLayoutStart(ctx, 10)
	l.OnLayoutComplete(ctx, 10, time.Second, nil)
	l.OnLayoutDiscarded(ctx)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "layout")
	c.OnCacheMiss(ctx, "layout")
	c.OnCacheSet(ctx, "layout", 1024)

	NoopStoreHooks{}.OnSave(ctx, "article", time.Millisecond, nil)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "gen.local", "/follow-up")
	h.OnResponse(ctx, "POST", "gen.local", "/follow-up", 200, time.Second)
	h.OnError(ctx, "POST", "gen.local", "/follow-up", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Generation().(NoopGenerationHooks); !ok {
		t.Error("Generation() should return NoopGenerationHooks by default")
	}
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Layout() should return NoopLayoutHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Store() should return NoopStoreHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	layout := &testLayoutHooks{}
	SetLayoutHooks(layout)
	if Layout() != layout {
		t.Error("SetLayoutHooks should set custom hooks")
	}
	gen := &testGenerationHooks{}
	SetGenerationHooks(gen)
	if Generation() != gen {
		t.Error("SetGenerationHooks should set custom hooks")
	}

	SetLayoutHooks(nil)
	if Layout() != layout {
		t.Error("SetLayoutHooks(nil) should keep the current hooks")
	}

	Reset()
	if _, ok := Layout().(NoopLayoutHooks); !ok {
		t.Error("Reset should restore NoopLayoutHooks")
	}
}

func TestHooksAreCalled(t *testing.T) {
	Reset()
	defer Reset()

	h := &testLayoutHooks{}
	SetLayoutHooks(h)

	ctx := context.Background()
	Layout().OnLayoutStart(ctx, 3)
	Layout().OnLayoutComplete(ctx, 3, time.Millisecond, nil)
	Layout().OnLayoutDiscarded(ctx)

	if h.starts != 1 || h.completes != 1 || h.discarded != 1 {
		t.Errorf("hooks called start=%d complete=%d discarded=%d", h.starts, h.completes, h.discarded)
	}
}

func TestConcurrentAccess(t *testing.T) {
	Reset()
	defer Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetStoreHooks(NoopStoreHooks{})
		}()
		go func() {
			defer wg.Done()
			Store().OnSave(context.Background(), "question", 0, nil)
		}()
	}
	wg.Wait()
}

type testLayoutHooks struct {
	mu                          sync.Mutex
	starts, completes, discarded int
}

func (h *testLayoutHooks) OnLayoutStart(context.Context, int) {
	h.mu.Lock()
	h.starts++
	h.mu.Unlock()
}

func (h *testLayoutHooks) OnLayoutComplete(context.Context, int, time.Duration, error) {
	h.mu.Lock()
	h.completes++
	h.mu.Unlock()
}

func (h *testLayoutHooks) OnLayoutDiscarded(context.Context) {
	h.mu.Lock()
	h.discarded++
	h.mu.Unlock()
}

type testGenerationHooks struct{}

func (*testGenerationHooks) OnGenerationStart(context.Context, GenerationKind, string) {}
func (*testGenerationHooks) OnGenerationComplete(context.Context, GenerationKind, string, time.Duration, error) {
}
