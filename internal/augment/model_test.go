package augment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"coolcar/internal/config"
	"coolcar/internal/domain"
	"coolcar/internal/store"
)

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req oaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "my car shakes" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  Check the wheel balance.  "}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(testClient(nil), OpenAIConfig{Name: "deepseek", APIKey: "sk-test", APIBase: srv.URL + "/v1/"})
	out, err := o.Complete(context.Background(), "my car shakes")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "Check the wheel balance." {
		t.Fatalf("unexpected completion %q", out)
	}
}

func TestOpenAI_EmptyCompletionIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(testClient(nil), OpenAIConfig{APIKey: "k", APIBase: srv.URL})
	if _, err := o.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on empty completion")
	}
}

type fakeCompleter struct {
	name  string
	out   string
	err   error
	calls int
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeSearcher struct {
	results []domain.SearchResult
	err     error
	calls   int
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(context.Context, string) ([]domain.SearchResult, error) {
	f.calls++
	return f.results, f.err
}

func TestChain_FailsOver(t *testing.T) {
	a := &fakeCompleter{name: "a", err: errors.New("down")}
	b := &fakeCompleter{name: "b", out: "answer"}
	c := NewChain([]domain.Completer{a, b}, testLogger())

	if c.Name() != "chain(a→b)" {
		t.Fatalf("unexpected name %q", c.Name())
	}
	out, err := c.Complete(context.Background(), "q")
	if err != nil || out != "answer" {
		t.Fatalf("got %q, %v", out, err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("unexpected call counts a=%d b=%d", a.calls, b.calls)
	}
}

func TestChain_AllFail(t *testing.T) {
	c := NewChain([]domain.Completer{
		&fakeCompleter{name: "a", err: errors.New("x")},
		&fakeCompleter{name: "b", err: errors.New("y")},
	}, testLogger())
	if _, err := c.Complete(context.Background(), "q"); err == nil || !strings.Contains(err.Error(), "y") {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestService_Modes(t *testing.T) {
	hit := []domain.SearchResult{{Content: "Rotate tires every 8000 km.", Source: "repairpal.com", Relevance: 0.6}}

	tests := []struct {
		name        string
		mode        Mode
		completer   *fakeCompleter
		searcher    *fakeSearcher
		wantKind    string
		wantText    string
		wantUnavail bool
	}{
		{"auto prefers model", ModeAuto, &fakeCompleter{name: "m", out: "model says"}, &fakeSearcher{results: hit}, "model", "model says", false},
		{"auto falls back to search", ModeAuto, &fakeCompleter{name: "m", err: errors.New("down")}, &fakeSearcher{results: hit}, "search", "Rotate tires every 8000 km. (Source: repairpal.com)", false},
		{"search only", ModeSearch, &fakeCompleter{name: "m", out: "model says"}, &fakeSearcher{results: hit}, "search", "Rotate tires every 8000 km. (Source: repairpal.com)", false},
		{"model only failing", ModeModel, &fakeCompleter{name: "m", err: errors.New("down")}, &fakeSearcher{results: hit}, "", "", true},
		{"no results", ModeSearch, nil, &fakeSearcher{}, "", "", true},
		{"off", ModeOff, &fakeCompleter{name: "m", out: "x"}, &fakeSearcher{results: hit}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ServiceConfig{Mode: tt.mode, Searcher: tt.searcher, Logger: testLogger()}
			if tt.completer != nil {
				cfg.Completer = tt.completer
			}
			res, err := NewService(cfg).Augment(context.Background(), "tire rotation")
			if tt.wantUnavail {
				if !errors.Is(err, domain.ErrUnavailable) {
					t.Fatalf("expected ErrUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Augment: %v", err)
			}
			if res.Kind != tt.wantKind || res.Text != tt.wantText {
				t.Fatalf("got %+v", res)
			}
		})
	}
}

func TestSummarize_Truncates(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := summarize(domain.SearchResult{Content: long, Source: "kbb.com"})
	if !strings.HasSuffix(got, "... (Source: kbb.com)") {
		t.Fatalf("unexpected summary tail: %q", got[len(got)-30:])
	}
	if len(got) > maxSnippetLen+30 {
		t.Fatalf("summary too long: %d", len(got))
	}
}

func TestSummarize_KeepsRunesWhole(t *testing.T) {
	got := summarize(domain.SearchResult{Content: strings.Repeat("€", 300)})
	if !utf8.ValidString(got) {
		t.Fatalf("summary is not valid UTF-8: %q", got[len(got)-10:])
	}
	if want := strings.Repeat("€", maxSnippetLen/3) + "..."; got != want {
		t.Fatalf("unexpected summary length %d, want %d", len(got), len(want))
	}
}

func TestBuild_DisablesPathsWithoutCredentials(t *testing.T) {
	cfg := config.Defaults().Augment
	cfg.Models = []config.ModelConfig{{Name: "deepseek", Model: "deepseek-chat"}}
	cfg.Search.GoogleAPIKey = ""

	svc, statuses := Build(context.Background(), cfg, store.NewMemory(), testLogger())
	if svc.Enabled() {
		t.Fatal("no path has credentials, service should be disabled")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected model + search statuses, got %+v", statuses)
	}
	for _, s := range statuses {
		if s.Configured {
			t.Fatalf("path %s should not be configured", s.Name)
		}
	}
}

func TestBuild_DuckDuckGoNeedsNoKey(t *testing.T) {
	cfg := config.Defaults().Augment
	cfg.Models = nil
	cfg.Search.Provider = "duckduckgo"

	svc, statuses := Build(context.Background(), cfg, nil, testLogger())
	if !svc.Enabled() {
		t.Fatal("duckduckgo search should enable augmentation")
	}
	if len(statuses) != 1 || !statuses[0].Configured {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
	if svc.Cache() != nil {
		t.Fatal("duckduckgo path has no cache")
	}
}
