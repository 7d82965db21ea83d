// Package sequencer drives one dashboard run at a time against the server.
//
// Every run gets a fresh RunIdentity. Starting a run cancels the previous one and
// makes its token inactive; an answer is handed to the Presenter only while its
// run still holds the active token, and the check and the hand-off happen under
// one lock so a superseded run can never render.
package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-dashboard/internal/client"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const (
	defaultReleaseTimeout = 5 * time.Second
	tracerName            = "github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
)

// API is the slice of the dashboard client the sequencer calls. *client.Client implements it.
type API interface {
	RandomUser(ctx context.Context) (*domain.Person, string, error)
	CountryFullInfo(ctx context.Context, runID string) (*domain.CountryProfile, error)
	ExchangeRate(ctx context.Context, runID string) (*domain.ExchangeQuote, error)
	News(ctx context.Context, runID string) (domain.HeadlineList, error)
	Release(ctx context.Context, runID string) error
}

var _ API = (*client.Client)(nil)

// Presenter renders run progress. Calls are serialized by the sequencer and
// never happen for a superseded run. Implementations must not call back into
// the Sequencer.
type Presenter interface {
	// Busy toggles the "run in progress" lock.
	Busy(busy bool)
	Loading(stage domain.StageName)
	ShowPerson(p *domain.Person)
	ShowCountry(c *domain.CountryProfile)
	// ShowExchange receives the currency code taken from the country record.
	ShowExchange(currency string, q *domain.ExchangeQuote)
	ShowNews(list domain.HeadlineList)
	Failed(f Failure)
}

// Failure is a failure notification for one stage.
type Failure struct {
	Stage   domain.StageName
	Kind    domain.ErrorKind
	Message string

	// Derived is true for stages that never ran because an earlier stage failed.
	Derived bool

	Err error
}

// RunIdentity identifies one client-side run. Identities only grow.
type RunIdentity uint64

// Result describes how a run ended.
type Result struct {
	ID    RunIdentity
	State RunState

	// ServerRunID is the run id the server minted, if stage 1 answered.
	ServerRunID string

	// Err is nil for completed runs, wraps domain.ErrRunSuperseded for
	// superseded runs, and holds the stage failure otherwise.
	Err error
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the sequencer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReleaseTimeout bounds the best-effort release of abandoned server runs.
func WithReleaseTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.releaseTimeout = d
		}
	}
}

// Sequencer runs the four stages in order, one active run at a time.
type Sequencer struct {
	api            API
	presenter      Presenter
	logger         *slog.Logger
	tracer         trace.Tracer
	releaseTimeout time.Duration

	mu      sync.Mutex
	minted  RunIdentity
	active  RunIdentity
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// New creates a Sequencer.
func New(api API, presenter Presenter, opts ...Option) *Sequencer {
	s := &Sequencer{
		api:            api,
		presenter:      presenter,
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
		releaseTimeout: defaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type run struct {
	id       RunIdentity
	state    RunState
	serverID string
	currency string
	err      error
}

// Run executes one run and blocks until it completes, fails or is superseded.
// It is safe to call from several goroutines; each call supersedes the previous.
//
// All stage requests of a run are children of one "dashboard run" span.
func (s *Sequencer) Run(ctx context.Context) Result {
	ctx, span := s.tracer.Start(ctx, "dashboard run")
	defer span.End()

	r, runCtx := s.start(ctx)
	span.SetAttributes(attribute.Int64("dashboard.run", int64(r.id)))

	person, serverID, err := s.api.RandomUser(runCtx)
	r.serverID = serverID
	if s.deliver(r, err, func() { s.presenter.ShowPerson(person) }) {
		country, err := s.api.CountryFullInfo(runCtx, r.serverID)
		if s.deliver(r, err, func() {
			s.presenter.ShowCountry(country)
			r.currency = country.Currency
		}) {
			quote, err := s.api.ExchangeRate(runCtx, r.serverID)
			if s.deliver(r, err, func() { s.presenter.ShowExchange(r.currency, quote) }) {
				news, err := s.api.News(runCtx, r.serverID)
				s.deliver(r, err, func() { s.presenter.ShowNews(news) })
			}
		}
	}

	res := s.finish(ctx, r)
	span.SetAttributes(
		attribute.String("dashboard.run_state", string(res.State)),
		attribute.String("dashboard.server_run_id", res.ServerRunID),
	)
	if res.State == StateFailed {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

// Active returns the identity of the most recently started run.
func (s *Sequencer) Active() RunIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until background releases of abandoned server runs are done.
func (s *Sequencer) Wait() {
	s.pending.Wait()
}

// start mints a new identity, supersedes the previous run and resets the presenter.
func (s *Sequencer) start(ctx context.Context) (*run, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.minted++
	id := s.minted
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.active = id
	s.cancel = cancel

	s.presenter.Busy(true)
	for _, stage := range domain.Stages {
		s.presenter.Loading(stage)
	}
	s.logger.Debug("run started", slog.Uint64("run", uint64(id)))

	return &run{id: id, state: StateStage1Pending}, runCtx
}

// deliver applies the answer of r's pending stage. show runs only if r is still
// active and err is nil. It reports whether the run should continue.
func (s *Sequencer) deliver(r *run, err error, show func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage := r.state.Stage()
	switch {
	case s.active != r.id:
		s.transition(r, EventSuperseded)
		r.err = domain.ErrRunSuperseded
		s.logger.Debug("dropping superseded answer",
			slog.Uint64("run", uint64(r.id)),
			slog.String("stage", string(stage)),
		)
		return false
	case err != nil:
		s.transition(r, EventFailed)
		kind := failureKind(err)
		r.err = &domain.StageFailure{Stage: stage, Kind: kind, Cause: err}
		s.reportFailure(stage, kind, err)
		return false
	default:
		show()
		s.transition(r, EventSucceeded)
		return true
	}
}

func (s *Sequencer) transition(r *run, ev Event) {
	next, err := r.state.Next(ev)
	if err != nil {
		s.logger.Error("invalid run transition", slog.Uint64("run", uint64(r.id)), slog.String("error", err.Error()))
		return
	}
	r.state = next
}

// reportFailure notifies the failed stage and every stage after it.
func (s *Sequencer) reportFailure(stage domain.StageName, kind domain.ErrorKind, err error) {
	msg := err.Error()

	s.presenter.Failed(Failure{Stage: stage, Kind: kind, Message: msg, Err: err})
	for _, later := range domain.Stages[stage.Index()+1:] {
		s.presenter.Failed(Failure{Stage: later, Kind: kind, Message: msg, Derived: true, Err: err})
	}
}

// failureKind prefers the kind the server reported over local classification.
func failureKind(err error) domain.ErrorKind {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if kind := domain.KindOf(err); kind != domain.KindInternal {
		return kind
	}
	// Anything else never reached the server: refused, reset or cancelled.
	return domain.KindUpstreamUnavailable
}

// finish releases the busy lock if r still owns it and frees the server run of
// an abandoned run.
func (s *Sequencer) finish(ctx context.Context, r *run) Result {
	s.mu.Lock()
	if s.active == r.id {
		s.cancel()
		s.cancel = nil
		s.presenter.Busy(false)
	}
	s.mu.Unlock()

	if r.state != StateCompleted && r.serverID != "" {
		s.release(ctx, r.serverID)
	}

	s.logger.Debug("run ended",
		slog.Uint64("run", uint64(r.id)),
		slog.String("state", string(r.state)),
	)
	return Result{ID: r.id, State: r.state, ServerRunID: r.serverID, Err: r.err}
}

// release frees serverID in the background. The server also ends failed runs and
// expires abandoned ones, so errors are only logged.
func (s *Sequencer) release(ctx context.Context, serverID string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
		defer cancel()
		if err := s.api.Release(rctx, serverID); err != nil {
			s.logger.Debug("release failed", slog.String("server_run_id", serverID), slog.String("error", err.Error()))
		}
	}()
}
