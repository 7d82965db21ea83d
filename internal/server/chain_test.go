package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tjfontaine/polyglot-dashboard/internal/client"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/pipeline"
	"github.com/tjfontaine/polyglot-dashboard/internal/present"
	"github.com/tjfontaine/polyglot-dashboard/internal/runstore/memory"
	"github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
	"github.com/tjfontaine/polyglot-dashboard/internal/server"
	"github.com/tjfontaine/polyglot-dashboard/internal/telemetry"
)

// norway answers every upstream for a person living in Norway.
type norway struct {
	countryErr error
}

func (n *norway) RandomPerson(ctx context.Context) (*domain.Person, error) {
	return &domain.Person{FirstName: "Ola", LastName: "Nordmann", Age: 52, Country: "Norway"}, nil
}

func (n *norway) CountryByName(ctx context.Context, name string) (*domain.CountryProfile, error) {
	if n.countryErr != nil {
		return nil, n.countryErr
	}
	return &domain.CountryProfile{Name: name, Capital: []string{"Oslo"}, Languages: []string{"Norwegian"}, Currency: "NOK", ISOCode: "no"}, nil
}

func (n *norway) LatestRates(ctx context.Context, base string) (*domain.ExchangeQuote, error) {
	return &domain.ExchangeQuote{USD: 0.093, EUR: 0.085}, nil
}

func (n *norway) TopHeadlines(ctx context.Context, country string) (domain.HeadlineList, error) {
	return domain.HeadlineList{{Title: "Hei", Source: "NRK", URL: "https://nrk.no"}}, nil
}

func (n *norway) CountryBrief(ctx context.Context, name string) (*domain.CountryBrief, error) {
	return &domain.CountryBrief{Name: name, Capital: "Oslo"}, nil
}

// newChain wires a real server, client and sequencer together.
func newChain(t *testing.T, up *norway) (*sequencer.Sequencer, *present.Recorder, *telemetry.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := telemetry.NewMetrics()

	stages, err := pipeline.NewStages(pipeline.Sources{People: up, Countries: up, Rates: up, Headlines: up, Briefs: up})
	if err != nil {
		t.Fatal(err)
	}
	exec, err := pipeline.NewExecutor(memory.New(time.Minute), stages,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(metrics),
	)
	if err != nil {
		t.Fatal(err)
	}

	srv := server.New(server.Options{Logger: logger, Metrics: metrics.Handler()}, exec)
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)

	api := client.NewClient(client.WithBaseURL(ts.URL), client.WithHTTPClient(ts.Client()))
	rec := &present.Recorder{}
	return sequencer.New(api, rec, sequencer.WithLogger(logger)), rec, metrics
}

var loadingAll = []string{
	"busy:true",
	"loading:random user",
	"loading:country info",
	"loading:exchange rate",
	"loading:news",
}

func TestChain_FullRun(t *testing.T) {
	seq, rec, metrics := newChain(t, &norway{})

	res := seq.Run(context.Background())
	seq.Wait()

	if res.State != sequencer.StateCompleted || res.Err != nil {
		t.Fatalf("Run() = %+v", res)
	}
	if res.ServerRunID == "" {
		t.Error("server run id not recorded")
	}

	want := append(append([]string(nil), loadingAll...),
		"show:random user",
		"show:country info",
		"show:exchange rate",
		"show:news",
		"busy:false",
	)
	if got := rec.Trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("trace = %v, want %v", got, want)
	}

	for _, e := range rec.Events() {
		if e.Op != "show" {
			continue
		}
		switch e.Stage {
		case domain.StageExchange:
			if e.Currency != "NOK" {
				t.Errorf("exchange currency = %q, want NOK", e.Currency)
			}
		case domain.StageNews:
			if list := e.Record.(domain.HeadlineList); len(list) != 1 || list[0].Title != "Hei" {
				t.Errorf("news = %+v", list)
			}
		}
	}

	if got := testutil.ToFloat64(metrics.ActiveRuns); got != 0 {
		t.Errorf("active runs = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.RunsEnded.WithLabelValues(pipeline.OutcomeCompleted)); got != 1 {
		t.Errorf("completed runs = %v, want 1", got)
	}
}

func TestChain_FailureReleasesRunOnce(t *testing.T) {
	seq, rec, metrics := newChain(t, &norway{countryErr: domain.Rejected("restcountries", 404, "Not Found")})

	res := seq.Run(context.Background())
	seq.Wait()

	if res.State != sequencer.StateFailed {
		t.Fatalf("Run() = %+v", res)
	}

	want := append(append([]string(nil), loadingAll...),
		"show:random user",
		"failed:country info",
		"derived:exchange rate",
		"derived:news",
		"busy:false",
	)
	if got := rec.Trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("trace = %v, want %v", got, want)
	}

	for _, f := range rec.Failures() {
		if f.Kind != domain.KindUpstreamRejected {
			t.Errorf("%s kind = %q, want upstream_rejected", f.Stage, f.Kind)
		}
		if !strings.HasPrefix(f.Message, "Failed to fetch country info") {
			t.Errorf("%s message = %q", f.Stage, f.Message)
		}
	}

	// The server ended the run on failure; the client's release must not count it again.
	if got := testutil.ToFloat64(metrics.ActiveRuns); got != 0 {
		t.Errorf("active runs = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.RunsEnded.WithLabelValues(pipeline.OutcomeFailed)); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.RunsEnded); got != 1 {
		t.Errorf("ended outcome series = %d, want only failed", got)
	}
}
