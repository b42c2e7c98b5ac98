package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
)

func TestClientGenerate(t *testing.T) {
	var got FollowUpRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/follow-up" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Content{
			Content:   "  Channels pass values.  ",
			Summary:   "Channels",
			Takeaways: []string{"send", " ", "receive"},
			Questions: []string{"What is a buffered channel?", ""},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/v1/", "secret", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	req := FollowUpRequest{Subject: "go", ParentArticleContent: "Goroutines", TriggeringQuestionText: "How do channels work?"}
	content, err := c.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != req {
		t.Errorf("server received %+v, want %+v", got, req)
	}
	if content.Content != "Channels pass values." {
		t.Errorf("Content = %q", content.Content)
	}
	if !slices.Equal(content.Takeaways, []string{"send", "receive"}) {
		t.Errorf("Takeaways = %v", content.Takeaways)
	}
	if !slices.Equal(content.Questions, []string{"What is a buffered channel?"}) {
		t.Errorf("Questions = %v", content.Questions)
	}
}

func TestClientGenerateInitial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/initial" {
			http.NotFound(w, r)
			return
		}
		var in InitialRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(Content{Content: "Welcome to " + in.Subject})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", 0)
	content, err := c.GenerateInitial(context.Background(), InitialRequest{Subject: "rust"})
	if err != nil {
		t.Fatalf("GenerateInitial() error: %v", err)
	}
	if content.Content != "Welcome to rust" {
		t.Errorf("Content = %q", content.Content)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Content{Content: "ok"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", time.Second, WithRetry(3, time.Millisecond))
	if _, err := c.Generate(context.Background(), FollowUpRequest{}); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		calls   int32
	}{
		{"bad request is not retried", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}, 1},
		{"persistent 500", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}, 2},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Content{Content: "   "})
		}, 1},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			c, _ := NewClient(srv.URL, "", time.Second, WithRetry(2, time.Millisecond))
			_, err := c.Generate(context.Background(), FollowUpRequest{})
			if !errors.Is(err, errors.ErrCodeGeneration) {
				t.Errorf("error = %v, want GENERATION_FAILED", err)
			}
			if calls.Load() != tt.calls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.calls)
			}
		})
	}
}

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "ftp://x", "localhost:8080"} {
		if _, err := NewClient(endpoint, "", 0); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("NewClient(%q) error = %v, want INVALID_INPUT", endpoint, err)
		}
	}
}

func TestOfflineDeterministic(t *testing.T) {
	req := FollowUpRequest{Subject: "go", ParentArticleContent: "# Goroutines\nbody", TriggeringQuestionText: "How do channels work?"}
	a, err := Offline{}.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Offline{}.Generate(context.Background(), req)
	if a.Content != b.Content || !slices.Equal(a.Questions, b.Questions) {
		t.Error("Offline output should depend only on the request")
	}
	if !strings.HasPrefix(a.Content, "# How do channels work?") {
		t.Errorf("Content = %q", a.Content)
	}
	if !strings.Contains(a.Content, `"Goroutines"`) {
		t.Errorf("parent title missing from %q", a.Content)
	}
	if len(a.Questions) == 0 || a.Summary == "" || len(a.Takeaways) == 0 {
		t.Errorf("incomplete content: %+v", a)
	}
}

func TestOfflineInitial(t *testing.T) {
	c, err := Offline{}.GenerateInitial(context.Background(), InitialRequest{Subject: "sql", ModuleDescription: "Relational data."})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(c.Content, "# sql") || !strings.Contains(c.Content, "Relational data.") {
		t.Errorf("Content = %q", c.Content)
	}
	if len(c.Questions) != 3 {
		t.Errorf("Questions = %v", c.Questions)
	}
}

func TestOfflineDelayHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Offline{Delay: time.Hour}).Generate(ctx, FollowUpRequest{}); err == nil {
		t.Error("cancelled context should abort the delay")
	}
}
