package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/generate"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/navigation"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/store"
)

type countingGenerator struct {
	generate.Offline
	initial  atomic.Int32
	followUp atomic.Int32
}

func (g *countingGenerator) Generate(ctx context.Context, req generate.FollowUpRequest) (generate.Content, error) {
	g.followUp.Add(1)
	return g.Offline.Generate(ctx, req)
}

func (g *countingGenerator) GenerateInitial(ctx context.Context, req generate.InitialRequest) (generate.Content, error) {
	g.initial.Add(1)
	return g.Offline.GenerateInitial(ctx, req)
}

type failingEngine struct{}

func (failingEngine) Compute(context.Context, layout.Request) (layout.Result, error) {
	return layout.Result{}, errors.New(errors.ErrCodeLayout, "engine down")
}

func open(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Subject == "" {
		opts.Subject = "golang"
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	s, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.Wait()
	return s
}

func TestOpenSeedsAndGeneratesRoot(t *testing.T) {
	st := store.NewMemory()
	gen := &countingGenerator{}
	s := open(t, Options{Store: st, Generator: gen, ModuleTitle: "Go basics"})

	root, ok := s.Graph().RootArticle()
	if !ok {
		t.Fatal("no root article")
	}
	if root.IsPlaceholder() {
		t.Error("root content was not generated")
	}
	if got := gen.initial.Load(); got != 1 {
		t.Errorf("GenerateInitial called %d times, want 1", got)
	}
	if s.Controller().Active() != root.ID {
		t.Errorf("active = %q, want root %q", s.Controller().Active(), root.ID)
	}

	vis := s.Visualization()
	if len(vis.Nodes) != 4 || len(vis.Edges) != 3 {
		t.Errorf("visualization has %d nodes, %d edges; want 4, 3", len(vis.Nodes), len(vis.Edges))
	}

	snap, err := st.Load(context.Background(), "golang")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Articles) != 1 || snap.Articles[0].Content == "" {
		t.Errorf("root not persisted with content: %+v", snap.Articles)
	}
	if len(snap.Questions) != 3 {
		t.Errorf("persisted %d questions, want 3", len(snap.Questions))
	}
	if snap.Map.ID != s.Map().ID {
		t.Errorf("map id %s != %s", snap.Map.ID, s.Map().ID)
	}
}

func TestOpenExistingMapKeepsContent(t *testing.T) {
	st := store.NewMemory()
	first := open(t, Options{Store: st})
	rootID := first.Controller().Active()
	first.Close()

	gen := &countingGenerator{}
	second := open(t, Options{Store: st, Generator: gen})
	if second.Controller().Active() != rootID {
		t.Errorf("reopened root = %q, want %q", second.Controller().Active(), rootID)
	}
	if got := gen.initial.Load(); got != 0 {
		t.Errorf("existing root regenerated %d times", got)
	}
	if n := len(second.Graph().Articles()); n != 1 {
		t.Errorf("reopened map has %d articles, want 1", n)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Subject: "golang"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("no store: got %v", err)
	}
	if _, err := Open(ctx, Options{Subject: "a/b", Store: store.NewMemory()}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad subject: got %v", err)
	}
}

func TestSelectQuestionPersistsAndPublishes(t *testing.T) {
	st := store.NewMemory()
	s := open(t, Options{Store: st})

	var mu sync.Mutex
	var seen []projection.Visualization
	stop := s.Subscribe(func(vis projection.Visualization) {
		mu.Lock()
		seen = append(seen, vis)
		mu.Unlock()
	})
	defer stop()

	root, _ := s.Graph().RootArticle()
	qs := s.Graph().QuestionsForArticle(root.ID)
	if len(qs) == 0 {
		t.Fatal("root has no questions")
	}
	ctx := context.Background()
	if err := s.Controller().Dispatch(ctx, navigation.Event{Type: navigation.SelectQuestionEvent, ID: qs[0].ID}); err != nil {
		t.Fatal(err)
	}
	s.Wait()

	q, _ := s.Graph().Question(qs[0].ID)
	if !q.Answered() {
		t.Fatal("question not answered")
	}
	dest, _ := s.Graph().Article(q.DestinationArticleID)
	if dest.IsPlaceholder() {
		t.Error("destination still a placeholder")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("no visualization published")
	}
	last := seen[len(seen)-1]
	n, ok := last.Node(dest.ID)
	if !ok || !n.IsActive || n.IsLoading {
		t.Errorf("last published destination node = %+v", n)
	}

	snap, _ := st.Load(ctx, "golang")
	var stored *learnmap.Question
	for i := range snap.Questions {
		if snap.Questions[i].ID == q.ID {
			stored = &snap.Questions[i]
		}
	}
	if stored == nil || stored.DestinationArticleID != dest.ID {
		t.Errorf("link not persisted: %+v", stored)
	}
}

func TestAutoLayout(t *testing.T) {
	st := store.NewMemory()
	s := open(t, Options{Store: st, Measurer: projection.DefaultEstimator})

	for _, n := range s.Visualization().Nodes {
		if n.Position == nil {
			t.Errorf("node %s has no position", n.ID)
		}
	}

	snap, _ := st.Load(context.Background(), "golang")
	for _, a := range snap.Articles {
		if a.Position == nil {
			t.Errorf("article %s position not persisted", a.ID)
		}
	}
	if s.Graph().Dirty() {
		t.Error("graph still dirty after layout")
	}
}

func TestRelayoutNeedsMeasurements(t *testing.T) {
	s := open(t, Options{})
	ctx := context.Background()

	s.Relayout(ctx)
	s.Wait()
	for _, n := range s.Visualization().Nodes {
		if n.Position != nil {
			t.Fatalf("incomplete layout applied a position to %s", n.ID)
		}
	}

	sizes := make(map[string]projection.Size)
	for _, n := range s.Visualization().Nodes {
		sizes[n.ID] = projection.Size{Width: 120, Height: 40}
	}
	sizes["ghost"] = projection.Size{Width: 0, Height: 10}
	s.Measure(sizes)
	s.Relayout(ctx)
	s.Wait()

	for _, n := range s.Visualization().Nodes {
		if n.Position == nil {
			t.Errorf("node %s has no position after measured relayout", n.ID)
		}
	}
}

func TestLayoutFailureKeepsPositions(t *testing.T) {
	s := open(t, Options{Engine: failingEngine{}, Measurer: projection.DefaultEstimator})

	root, _ := s.Graph().RootArticle()
	s.Graph().ApplyPositions(map[string]learnmap.Position{root.ID: {X: 1, Y: 2}})

	s.Relayout(context.Background())
	s.Wait()
	got, _ := s.Graph().Article(root.ID)
	if got.Position == nil || *got.Position != (learnmap.Position{X: 1, Y: 2}) {
		t.Errorf("position changed after failed layout: %+v", got.Position)
	}
}

func TestSubscribeStop(t *testing.T) {
	s := open(t, Options{})
	var calls atomic.Int32
	stop := s.Subscribe(func(projection.Visualization) { calls.Add(1) })
	stop()

	root, _ := s.Graph().RootArticle()
	if _, err := s.Controller().AskQuestion(context.Background(), root.ID, "Why?"); err != nil {
		t.Fatal(err)
	}
	s.Wait()
	if calls.Load() != 0 {
		t.Errorf("stopped subscriber called %d times", calls.Load())
	}
}

func TestManager(t *testing.T) {
	m := NewManager(Options{Store: store.NewMemory()})
	defer m.Close()
	ctx := context.Background()

	a, err := m.Get(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Get(ctx, "golang")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("Get opened a second session for the same subject")
	}
	if _, err := m.Get(ctx, "rust"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "../x"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad subject: got %v", err)
	}
	m.Wait()

	got := m.Subjects()
	if len(got) != 2 || got[0] != "golang" || got[1] != "rust" {
		t.Errorf("Subjects() = %v", got)
	}
	if a.Map().SubjectID != "golang" {
		t.Errorf("session subject = %q", a.Map().SubjectID)
	}

	m.Close()
	if len(m.Subjects()) != 0 {
		t.Error("Close left sessions open")
	}
}
