package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
)

const tracerName = "github.com/tjfontaine/polyglot-dashboard/internal/pipeline"

// Outcomes reported to the Recorder when a run ends.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeReleased  = "released"
)

// Recorder receives stage and run measurements. telemetry.Metrics implements it.
type Recorder interface {
	ObserveStage(stage domain.StageName, kind domain.ErrorKind, d time.Duration)
	RunStarted()
	RunEnded(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(domain.StageName, domain.ErrorKind, time.Duration) {}
func (nopRecorder) RunStarted()                                                    {}
func (nopRecorder) RunEnded(string)                                                {}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder sets where stage metrics go.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator overrides run id minting. Tests use it for stable ids.
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// Executor runs stages against the PipelineContext of one run.
// It holds no per-run state itself; every run lives in the RunStore.
type Executor struct {
	store    ports.RunStore
	stages   map[domain.StageName]ports.Stage
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	newID    func() string
}

// NewExecutor creates an executor over store. Stage names must be unique.
func NewExecutor(store ports.RunStore, stages []ports.Stage, opts ...Option) (*Executor, error) {
	if store == nil {
		return nil, errors.New("pipeline: run store is required")
	}

	e := &Executor{
		store:    store,
		stages:   make(map[domain.StageName]ports.Stage, len(stages)),
		recorder: nopRecorder{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		newID:    uuid.NewString,
	}
	for _, s := range stages {
		if _, dup := e.stages[s.Name()]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage %q", s.Name())
		}
		e.stages[s.Name()] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Begin starts a new run with an empty context and returns its id.
func (e *Executor) Begin(ctx context.Context) (string, error) {
	pc := domain.NewPipelineContext(e.newID())
	if err := e.store.Create(ctx, pc); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	e.recorder.RunStarted()
	e.logger.Debug("run started", slog.String("run_id", pc.RunID()))
	return pc.RunID(), nil
}

// Step executes stage within run runID and returns the stage's record.
//
// The context is persisted only when the stage changed it. The run ends when the
// stage is terminal or when a chain stage fails; a failed auxiliary stage leaves the
// run alive. All errors are *domain.StageFailure.
func (e *Executor) Step(ctx context.Context, runID string, stage domain.StageName) (any, error) {
	st, ok := e.stages[stage]
	if !ok {
		return nil, &domain.StageFailure{Stage: stage, Kind: domain.KindInternal, Cause: fmt.Errorf("stage %q is not configured", stage)}
	}

	ctx, span := e.tracer.Start(ctx, "stage "+string(stage), trace.WithAttributes(
		attribute.String("dashboard.stage", string(stage)),
		attribute.String("dashboard.run_id", runID),
	))
	defer span.End()

	pc, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, e.fail(span, classifyStoreErr(stage, err))
	}

	start := time.Now()
	record, err := st.Execute(ctx, pc)
	elapsed := time.Since(start)

	if err != nil {
		failure := domain.NewStageFailure(stage, err)
		e.recorder.ObserveStage(stage, failure.Kind, elapsed)
		e.logger.Warn("stage failed",
			slog.String("stage", string(stage)),
			slog.String("run_id", runID),
			slog.String("kind", string(failure.Kind)),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		if stage.Index() >= 0 {
			e.end(ctx, runID, OutcomeFailed)
		}
		return nil, e.fail(span, failure)
	}

	e.recorder.ObserveStage(stage, "", elapsed)
	e.logger.Info("stage completed",
		slog.String("stage", string(stage)),
		slog.String("run_id", runID),
		slog.Duration("duration", elapsed),
	)

	switch {
	case st.Terminal():
		e.end(ctx, runID, OutcomeCompleted)
	case pc.Dirty():
		if err := e.store.Save(ctx, pc); err != nil {
			return nil, e.fail(span, classifyStoreErr(stage, err))
		}
	}

	span.SetStatus(codes.Ok, "")
	return record, nil
}

// Release ends runID early. Releasing an unknown or finished run is not an error
// and is not counted as an ended run.
func (e *Executor) Release(ctx context.Context, runID string) error {
	removed, err := e.store.Delete(ctx, runID)
	if err != nil {
		return fmt.Errorf("release run %s: %w", runID, err)
	}
	if removed {
		e.recorder.RunEnded(OutcomeReleased)
	}
	e.logger.Debug("run released", slog.String("run_id", runID), slog.Bool("removed", removed))
	return nil
}

// end deletes the run's context. The request may already be cancelled, so the
// delete runs detached from ctx's cancellation. Only the caller that removes
// the run records its outcome.
func (e *Executor) end(ctx context.Context, runID, outcome string) {
	removed, err := e.store.Delete(context.WithoutCancel(ctx), runID)
	if err != nil {
		e.logger.Error("failed to end run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return
	}
	if removed {
		e.recorder.RunEnded(outcome)
	}
}

func (e *Executor) fail(span trace.Span, failure *domain.StageFailure) *domain.StageFailure {
	span.RecordError(failure)
	span.SetStatus(codes.Error, string(failure.Kind))
	return failure
}

func classifyStoreErr(stage domain.StageName, err error) *domain.StageFailure {
	if errors.Is(err, domain.ErrRunNotFound) {
		return &domain.StageFailure{Stage: stage, Kind: domain.KindRunNotFound, Cause: err}
	}
	return &domain.StageFailure{Stage: stage, Kind: domain.KindInternal, Cause: err}
}
