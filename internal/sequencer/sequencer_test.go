package sequencer_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-dashboard/internal/client"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/present"
	"github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
)

// fakeAPI answers every stage for France. Hooks override single stages; the
// hook receives the 1-based number of the RandomUser call that started the run.
type fakeAPI struct {
	mu       sync.Mutex
	users    int
	calls    []string
	released []string

	onUser     func(ctx context.Context, n int) error
	onCountry  func(ctx context.Context, runID string) error
	onExchange func(ctx context.Context, runID string) error
	onNews     func(ctx context.Context, runID string) error
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Released() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

func (f *fakeAPI) RandomUser(ctx context.Context) (*domain.Person, string, error) {
	f.mu.Lock()
	f.users++
	n := f.users
	f.mu.Unlock()

	runID := fmt.Sprintf("srv-%d", n)
	f.record("random-user:" + runID)
	if f.onUser != nil {
		if err := f.onUser(ctx, n); err != nil {
			return nil, "", err
		}
	}
	return &domain.Person{FirstName: fmt.Sprintf("Person %d", n), Country: "France"}, runID, nil
}

func (f *fakeAPI) CountryFullInfo(ctx context.Context, runID string) (*domain.CountryProfile, error) {
	f.record("country:" + runID)
	if f.onCountry != nil {
		if err := f.onCountry(ctx, runID); err != nil {
			return nil, err
		}
	}
	return &domain.CountryProfile{Name: "France", Capital: []string{"Paris"}, Currency: "EUR"}, nil
}

func (f *fakeAPI) ExchangeRate(ctx context.Context, runID string) (*domain.ExchangeQuote, error) {
	f.record("exchange:" + runID)
	if f.onExchange != nil {
		if err := f.onExchange(ctx, runID); err != nil {
			return nil, err
		}
	}
	return &domain.ExchangeQuote{USD: 1.17, EUR: 1}, nil
}

func (f *fakeAPI) News(ctx context.Context, runID string) (domain.HeadlineList, error) {
	f.record("news:" + runID)
	if f.onNews != nil {
		if err := f.onNews(ctx, runID); err != nil {
			return nil, err
		}
	}
	return domain.HeadlineList{{Title: "T", Source: "S", URL: "https://example.com"}}, nil
}

func (f *fakeAPI) Release(ctx context.Context, runID string) error {
	f.mu.Lock()
	f.released = append(f.released, runID)
	f.mu.Unlock()
	return nil
}

func newSequencer(api sequencer.API, p sequencer.Presenter) *sequencer.Sequencer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sequencer.New(api, p, sequencer.WithLogger(logger), sequencer.WithReleaseTimeout(time.Second))
}

var loadingAll = []string{
	"busy:true",
	"loading:random user",
	"loading:country info",
	"loading:exchange rate",
	"loading:news",
}

func TestSequencer_FullRun(t *testing.T) {
	api := &fakeAPI{}
	rec := &present.Recorder{}
	seq := newSequencer(api, rec)

	res := seq.Run(context.Background())
	seq.Wait()

	if res.State != sequencer.StateCompleted || res.Err != nil {
		t.Fatalf("Run() = %+v", res)
	}
	if res.ID != 1 || res.ServerRunID != "srv-1" {
		t.Errorf("ID = %d, ServerRunID = %q", res.ID, res.ServerRunID)
	}

	wantCalls := []string{"random-user:srv-1", "country:srv-1", "exchange:srv-1", "news:srv-1"}
	if got := api.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
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
		if e.Op == "show" && e.Stage == domain.StageExchange && e.Currency != "EUR" {
			t.Errorf("exchange currency = %q, want EUR", e.Currency)
		}
	}
	if got := api.Released(); len(got) != 0 {
		t.Errorf("completed run should not be released, got %v", got)
	}
}

func TestSequencer_FailureHaltsChain(t *testing.T) {
	api := &fakeAPI{
		onCountry: func(context.Context, string) error {
			return &client.APIError{
				StatusCode: http.StatusBadGateway,
				Message:    "Failed to fetch country info: restcountries: Not Found (status 404)",
				Stage:      domain.StageCountry,
				Kind:       domain.KindUpstreamRejected,
			}
		},
	}
	rec := &present.Recorder{}
	seq := newSequencer(api, rec)

	res := seq.Run(context.Background())
	seq.Wait()

	if res.State != sequencer.StateFailed {
		t.Fatalf("State = %q, want failed", res.State)
	}
	var failure *domain.StageFailure
	if !errors.As(res.Err, &failure) {
		t.Fatalf("Err = %v, want *domain.StageFailure", res.Err)
	}
	if failure.Stage != domain.StageCountry || failure.Kind != domain.KindUpstreamRejected {
		t.Errorf("failure = %+v", failure)
	}

	wantCalls := []string{"random-user:srv-1", "country:srv-1"}
	if got := api.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
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
			t.Errorf("%s kind = %q", f.Stage, f.Kind)
		}
		if f.Message != "Failed to fetch country info: restcountries: Not Found (status 404)" {
			t.Errorf("%s message = %q", f.Stage, f.Message)
		}
	}

	if got := api.Released(); !reflect.DeepEqual(got, []string{"srv-1"}) {
		t.Errorf("released = %v, want [srv-1]", got)
	}
}

func TestSequencer_FirstStageFailure(t *testing.T) {
	api := &fakeAPI{
		onUser: func(context.Context, int) error {
			return errors.New("dial tcp 127.0.0.1:3000: connect: connection refused")
		},
	}
	rec := &present.Recorder{}
	seq := newSequencer(api, rec)

	res := seq.Run(context.Background())
	seq.Wait()

	if res.State != sequencer.StateFailed {
		t.Fatalf("State = %q", res.State)
	}
	failures := rec.Failures()
	if len(failures) != 4 {
		t.Fatalf("failures = %d, want 4", len(failures))
	}
	if failures[0].Derived || failures[0].Stage != domain.StagePerson {
		t.Errorf("first failure = %+v", failures[0])
	}
	if failures[0].Kind != domain.KindUpstreamUnavailable {
		t.Errorf("kind = %q, want %q", failures[0].Kind, domain.KindUpstreamUnavailable)
	}
	for _, f := range failures[1:] {
		if !f.Derived {
			t.Errorf("%s should be derived", f.Stage)
		}
	}
	if got := api.Released(); len(got) != 0 {
		t.Errorf("no server run was created, released = %v", got)
	}
}

// A superseded run whose stage-1 answer arrives late must not render.
func TestSequencer_SupersededLateAnswer(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	api := &fakeAPI{
		onUser: func(ctx context.Context, n int) error {
			if n == 1 {
				close(entered)
				// The answer arrives even though the caller gave up.
				<-unblock
			}
			return nil
		},
	}
	rec := &present.Recorder{}
	seq := newSequencer(api, rec)

	first := make(chan sequencer.Result, 1)
	go func() { first <- seq.Run(context.Background()) }()
	<-entered

	second := seq.Run(context.Background())
	if second.State != sequencer.StateCompleted {
		t.Fatalf("second run = %+v", second)
	}
	traceAfterSecond := rec.Trace()

	close(unblock)
	res := <-first
	seq.Wait()

	if res.State != sequencer.StateSuperseded {
		t.Errorf("first run state = %q, want superseded", res.State)
	}
	if !errors.Is(res.Err, domain.ErrRunSuperseded) {
		t.Errorf("first run err = %v", res.Err)
	}
	if got := rec.Trace(); !reflect.DeepEqual(got, traceAfterSecond) {
		t.Errorf("superseded run reached the presenter: %v", got[len(traceAfterSecond):])
	}
	for _, e := range rec.Events() {
		if p, ok := e.Record.(*domain.Person); ok && p.FirstName == "Person 1" {
			t.Error("stale person rendered")
		}
	}
	if got := len(rec.Failures()); got != 0 {
		t.Errorf("supersession reported %d failures", got)
	}

	for _, call := range api.Calls() {
		if call == "country:srv-1" {
			t.Error("superseded run issued its next stage")
		}
	}
	if got := api.Released(); !reflect.DeepEqual(got, []string{"srv-1"}) {
		t.Errorf("released = %v, want [srv-1]", got)
	}
}

// A superseded run that honours cancellation ends silently too.
func TestSequencer_SupersededCancelled(t *testing.T) {
	entered := make(chan struct{})
	api := &fakeAPI{
		onExchange: func(ctx context.Context, runID string) error {
			if runID == "srv-1" {
				close(entered)
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	}
	rec := &present.Recorder{}
	seq := newSequencer(api, rec)

	first := make(chan sequencer.Result, 1)
	go func() { first <- seq.Run(context.Background()) }()
	<-entered

	second := seq.Run(context.Background())
	res := <-first
	seq.Wait()

	if second.State != sequencer.StateCompleted {
		t.Errorf("second run = %+v", second)
	}
	if res.State != sequencer.StateSuperseded {
		t.Errorf("first run state = %q, want superseded", res.State)
	}
	if got := len(rec.Failures()); got != 0 {
		t.Errorf("cancellation by supersession reported %d failures", got)
	}

	busy := 0
	for _, e := range rec.Events() {
		if e.Op == "busy" && !e.Busy {
			busy++
		}
	}
	if busy != 1 {
		t.Errorf("busy:false reported %d times, want 1", busy)
	}
	if seq.Active() != 2 {
		t.Errorf("Active() = %d, want 2", seq.Active())
	}
}

func TestSequencer_IdentitiesIncrease(t *testing.T) {
	api := &fakeAPI{}
	seq := newSequencer(api, &present.Recorder{})

	var last sequencer.RunIdentity
	for i := 0; i < 3; i++ {
		res := seq.Run(context.Background())
		if res.ID <= last {
			t.Errorf("run %d id = %d, previous %d", i, res.ID, last)
		}
		last = res.ID
	}
}

func TestSequencer_CallerCancelled(t *testing.T) {
	api := &fakeAPI{
		onCountry: func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	rec := &present.Recorder{}
	seq := newSequencer(api, rec)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	res := seq.Run(ctx)
	seq.Wait()

	if res.State != sequencer.StateFailed {
		t.Fatalf("State = %q, want failed", res.State)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
	// The release must outlive the caller's cancelled context.
	if got := api.Released(); !reflect.DeepEqual(got, []string{"srv-1"}) {
		t.Errorf("released = %v", got)
	}
}
