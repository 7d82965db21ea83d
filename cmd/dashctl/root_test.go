package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "dashctl" {
		t.Errorf("Use = %q", cmd.Use)
	}
	if cmd.Version == "" {
		t.Error("expected non-empty version")
	}

	for _, name := range []string{"server", "timeout", "verbose"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag %q", name)
		}
	}
	if f := cmd.PersistentFlags().Lookup("server"); f != nil && f.DefValue != defaultServer {
		t.Errorf("server default = %q", f.DefValue)
	}

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "watch"} {
		if !names[want] {
			t.Errorf("missing subcommand %q", want)
		}
	}
}

type stubStats struct {
	runs atomic.Int32

	mu           sync.Mutex
	traceparents []string
}

func (s *stubStats) Traceparents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.traceparents...)
}

// dashboardStub serves the stage endpoints for France. failCountry makes the
// country stage answer like an upstream rejection.
func dashboardStub(t *testing.T, failCountry bool) (*httptest.Server, *stubStats) {
	t.Helper()

	stats := &stubStats{}
	runs := &stats.runs
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/random-user", func(w http.ResponseWriter, r *http.Request) {
		runs.Add(1)
		w.Header().Set("X-Run-ID", "run-1")
		w.Write([]byte(`{"firstName":"Jeanne","lastName":"Martin","gender":"female","age":38,"dateOfBirth":"1987-03-14T09:21:44.120Z","city":"Lyon","country":"France"}`))
	})
	mux.HandleFunc("GET /api/country-full-info", func(w http.ResponseWriter, r *http.Request) {
		if failCountry {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"Failed to fetch country info: restcountries: Not Found (status 404)","stage":"country info","kind":"upstream_rejected"}`))
			return
		}
		w.Write([]byte(`{"name":"France","capital":["Paris"],"languages":["French"],"currency":"EUR"}`))
	})
	mux.HandleFunc("GET /api/exchange-rate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"usd":1.1674,"eur":1}`))
	})
	mux.HandleFunc("GET /api/news", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"Budget adopted","source":"Le Monde","url":"https://example.com/a"}]`))
	})
	mux.HandleFunc("DELETE /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			stats.mu.Lock()
			stats.traceparents = append(stats.traceparents, r.Header.Get("traceparent"))
			stats.mu.Unlock()
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, stats
}

func TestRunCmd(t *testing.T) {
	srv, _ := dashboardStub(t, false)

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"run", "--server", srv.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v (stderr: %s)", err, errOut.String())
	}

	for _, want := range []string{"Jeanne Martin", "1987-03-14", "Paris", "Exchange Rates for EUR", "1.1674", "Budget adopted"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunCmd_Failure(t *testing.T) {
	srv, _ := dashboardStub(t, true)

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"run", "--server", srv.URL})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for a failed run")
	}
	if !strings.Contains(err.Error(), "Failed to fetch country info") {
		t.Errorf("error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Jeanne Martin") {
		t.Errorf("stage 1 should stay rendered:\n%s", got)
	}
	for _, want := range []string{"Failed to load country info", "Failed to load exchange rates", "Failed to load news headlines"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWatchCmd(t *testing.T) {
	srv, stats := dashboardStub(t, false)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch", "--server", srv.URL, "--interval", "10ms", "--count", "2"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// The first run may be cancelled before its request lands.
	if got := stats.runs.Load(); got < 1 || got > 2 {
		t.Errorf("runs = %d, want 1 or 2", got)
	}
	if !strings.Contains(out.String(), "Top Headlines") {
		t.Errorf("last run should complete:\n%s", out.String())
	}
}

func TestWatchCmd_InvalidFlags(t *testing.T) {
	tests := [][]string{
		{"watch", "--interval", "0s"},
		{"watch", "--count", "-1"},
	}
	for _, args := range tests {
		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil {
			t.Errorf("Execute(%v) expected error", args)
		}
	}
}

func TestRunCmd_PropagatesTraceContext(t *testing.T) {
	srv, stats := dashboardStub(t, false)

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--server", srv.URL})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := stats.Traceparents()
	if len(got) != 4 {
		t.Fatalf("stage requests = %d, want 4", len(got))
	}
	// traceparent is version-traceid-spanid-flags; all stages share the run's trace.
	traceID := func(tp string) string {
		parts := strings.Split(tp, "-")
		if len(parts) != 4 {
			return ""
		}
		return parts[1]
	}
	first := traceID(got[0])
	if first == "" {
		t.Fatalf("traceparent = %q", got[0])
	}
	for i, tp := range got {
		if traceID(tp) != first {
			t.Errorf("request %d traceparent = %q, want trace %s", i, tp, first)
		}
	}
}
