package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// ErrorResponse is the body of every non-2xx stage response.
type ErrorResponse struct {
	Message string `json:"message"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFailure writes the error envelope for err, attributed to stage.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, stage domain.StageName, err error) {
	var failure *domain.StageFailure
	if !errors.As(err, &failure) {
		failure = domain.NewStageFailure(stage, err)
	}
	AddError(r.Context(), err)
	AddLogField(r.Context(), "error_kind", string(failure.Kind))

	status := failure.HTTPStatusCode()
	if status >= 500 && failure.Kind == domain.KindInternal {
		s.logger.Error(failure.Error(), "stage", string(stage), "request_id", GetRequestID(r.Context()))
	}

	writeJSON(w, status, ErrorResponse{
		Message: failure.Error(),
		Stage:   string(failure.Stage),
		Kind:    string(failure.Kind),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRandomUser begins a new run and executes its first stage.
func (s *Server) handleRandomUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	AddLogField(ctx, "stage", domain.StagePerson.String())

	runID, err := s.exec.Begin(ctx)
	if err != nil {
		s.writeFailure(w, r, domain.StagePerson, err)
		return
	}
	AddLogField(ctx, "run_id", runID)

	record, err := s.exec.Step(ctx, runID, domain.StagePerson)
	if err != nil {
		s.writeFailure(w, r, domain.StagePerson, err)
		return
	}

	w.Header().Set(RunHeader, runID)
	writeJSON(w, http.StatusOK, record)
}

// handleStage executes stage within the run named by the X-Run-ID header.
func (s *Server) handleStage(stage domain.StageName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		AddLogField(ctx, "stage", stage.String())

		runID := r.Header.Get(RunHeader)
		if runID == "" {
			s.writeFailure(w, r, stage, &domain.StageFailure{
				Stage: stage,
				Kind:  domain.KindMissingRunID,
				Cause: errors.New("missing " + RunHeader + " header"),
			})
			return
		}
		AddLogField(ctx, "run_id", runID)

		record, err := s.exec.Step(ctx, runID, stage)
		if err != nil {
			s.writeFailure(w, r, stage, err)
			return
		}

		w.Header().Set(RunHeader, runID)
		writeJSON(w, http.StatusOK, record)
	}
}

// handleRelease ends a run early. It is idempotent.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	AddLogField(r.Context(), "run_id", runID)

	if err := s.exec.Release(r.Context(), runID); err != nil {
		AddError(r.Context(), err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Message: err.Error(),
			Kind:    string(domain.KindInternal),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
