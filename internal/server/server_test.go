package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/generate"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/observability"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/store"
)

type failingGenerator struct{ generate.Offline }

func (failingGenerator) Generate(context.Context, generate.FollowUpRequest) (generate.Content, error) {
	return generate.Content{}, errors.New(errors.ErrCodeGeneration, "service unavailable")
}

type testServer struct {
	*httptest.Server
	sessions *session.Manager
}

func newTestServer(t *testing.T, opts session.Options) *testServer {
	t.Helper()
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	mgr := session.NewManager(opts)
	srv := New(mgr, Options{Heartbeat: 50 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		mgr.Close()
		observability.Reset()
	})
	return &testServer{Server: ts, sessions: mgr}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (ts *testServer) wait(t *testing.T, subject string) *session.Session {
	t.Helper()
	sess, err := ts.sessions.Get(context.Background(), subject)
	if err != nil {
		t.Fatal(err)
	}
	sess.Wait()
	return sess
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Build.Version == "" {
		t.Errorf("health = %+v", body)
	}
}

func TestGetMap(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	ts.wait(t, "golang")

	resp := ts.do(t, http.MethodGet, "/api/maps/golang", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[mapResponse](t, resp)
	if body.Map.SubjectID != "golang" {
		t.Errorf("subject = %q", body.Map.SubjectID)
	}
	if len(body.Visualization.Nodes) != 4 {
		t.Errorf("nodes = %d, want root and 3 questions", len(body.Visualization.Nodes))
	}
	if !body.Visualization.Nodes[0].IsRoot || !body.Visualization.Nodes[0].IsActive {
		t.Errorf("first node = %+v, want active root", body.Visualization.Nodes[0])
	}
}

func TestGetMapInvalidSubject(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	resp := ts.do(t, http.MethodGet, "/api/maps/bad!subject/visualization", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody[errorResponse](t, resp)
	if body.Code != errors.ErrCodeInvalidInput {
		t.Errorf("code = %q", body.Code)
	}
}

func TestSelectQuestionEvent(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	sess := ts.wait(t, "golang")
	root, _ := sess.Graph().RootArticle()
	q := sess.Graph().QuestionsForArticle(root.ID)[0]

	resp := ts.do(t, http.MethodPost, "/api/maps/golang/events", map[string]string{"type": "selectQuestion", "id": q.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	vis := decodeBody[projection.Visualization](t, resp)

	linked, _ := sess.Graph().Question(q.ID)
	if !linked.Answered() {
		t.Fatal("question not linked synchronously")
	}
	n, ok := vis.Node(linked.DestinationArticleID)
	if !ok || !n.IsActive {
		t.Errorf("placeholder node = %+v, want active", n)
	}

	sess.Wait()
	dest, _ := sess.Graph().Article(linked.DestinationArticleID)
	if dest.IsPlaceholder() {
		t.Error("placeholder never filled")
	}
}

func TestEventErrors(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	ts.wait(t, "golang")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown type", map[string]string{"type": "zoom", "id": "x"}, http.StatusBadRequest},
		{"unknown field", map[string]string{"kind": "selectArticle"}, http.StatusBadRequest},
		{"unknown article is ignored", map[string]string{"type": "selectArticle", "id": "nope"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/maps/golang/events", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAskQuestion(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	sess := ts.wait(t, "golang")
	root, _ := sess.Graph().RootArticle()

	resp := ts.do(t, http.MethodPost, "/api/maps/golang/questions", questionRequest{ArticleID: root.ID, Text: "How do channels work?"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[questionResponse](t, resp)
	q, ok := sess.Graph().Question(body.QuestionID)
	if !ok || q.Text != "How do channels work?" {
		t.Errorf("question = %+v", q)
	}

	tests := []struct {
		name string
		req  questionRequest
		want int
	}{
		{"missing article id", questionRequest{Text: "x"}, http.StatusBadRequest},
		{"unknown article", questionRequest{ArticleID: "nope", Text: "x"}, http.StatusNotFound},
		{"empty text", questionRequest{ArticleID: root.ID}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/maps/golang/questions", tt.req)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRetry(t *testing.T) {
	ts := newTestServer(t, session.Options{Generator: failingGenerator{}})
	sess := ts.wait(t, "golang")
	root, _ := sess.Graph().RootArticle()
	q := sess.Graph().QuestionsForArticle(root.ID)[0]

	ts.do(t, http.MethodPost, "/api/maps/golang/events", map[string]string{"type": "selectQuestion", "id": q.ID})
	sess.Wait()
	linked, _ := sess.Graph().Question(q.ID)
	failed, _ := sess.Graph().Article(linked.DestinationArticleID)
	if !failed.Failed() {
		t.Fatal("generation did not fail")
	}

	resp := ts.do(t, http.MethodPost, "/api/maps/golang/articles/"+failed.ID+"/retry", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("retry status = %d, want 202", resp.StatusCode)
	}
	sess.Wait()

	resp = ts.do(t, http.MethodPost, "/api/maps/golang/articles/"+root.ID+"/retry", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("retry healthy article status = %d, want 409", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodPost, "/api/maps/golang/articles/nope/retry", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("retry unknown article status = %d, want 404", resp.StatusCode)
	}
}

func TestMeasurementsAndLayout(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	sess := ts.wait(t, "golang")

	sizes := make(map[string]projection.Size)
	for _, n := range sess.Visualization().Nodes {
		sizes[n.ID] = projection.Size{Width: 100, Height: 40}
	}
	resp := ts.do(t, http.MethodPost, "/api/maps/golang/measurements", measurementsRequest{Sizes: sizes})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("measurements status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/maps/golang/layout", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("layout status = %d", resp.StatusCode)
	}
	if body := decodeBody[layoutResponse](t, resp); body.Ticket == 0 {
		t.Error("no ticket returned")
	}
	sess.Wait()

	for _, n := range sess.Visualization().Nodes {
		if n.Position == nil {
			t.Errorf("node %s not positioned", n.ID)
		}
	}
}

func TestStream(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	sess := ts.wait(t, "golang")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/maps/golang/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := make(chan projection.Visualization, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var vis projection.Visualization
			if json.Unmarshal([]byte(data), &vis) == nil {
				events <- vis
			}
		}
	}()

	first, ok := <-events
	if !ok {
		t.Fatal("stream closed before the first event")
	}
	if len(first.Nodes) != 4 {
		t.Errorf("first event has %d nodes", len(first.Nodes))
	}

	root, _ := sess.Graph().RootArticle()
	if _, err := sess.Controller().AskQuestion(ctx, root.ID, "What is a goroutine?"); err != nil {
		t.Fatal(err)
	}

	for vis := range events {
		for _, n := range vis.Nodes {
			if n.Type == projection.NodeQuestion && n.Label == "What is a goroutine?" {
				return
			}
		}
	}
	t.Error("stream never delivered the new question")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeValidation, http.StatusBadRequest},
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeConflict, http.StatusConflict},
		{errors.ErrCodeInvalidState, http.StatusConflict},
		{errors.ErrCodeGeneration, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, session.Options{})
	ts.wait(t, "golang")

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"learnmap_generations_total", "learnmap_store_saves_total"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestCORS(t *testing.T) {
	mgr := session.NewManager(session.Options{Store: store.NewMemory()})
	defer mgr.Close()
	defer observability.Reset()
	h := New(mgr, Options{CORSOrigins: []string{"http://localhost:5173"}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/maps/golang/events", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}
