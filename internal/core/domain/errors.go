package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the category of a pipeline failure.
type ErrorKind string

const (
	// KindUpstreamUnavailable indicates the upstream could not be reached (network error, timeout).
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// KindUpstreamRejected indicates the upstream answered with a non-success status.
	KindUpstreamRejected ErrorKind = "upstream_rejected"

	// KindMalformedPayload indicates an expected upstream field was missing or had the wrong shape.
	KindMalformedPayload ErrorKind = "malformed_upstream_payload"

	// KindMissingParameter indicates a stage required a context parameter that no earlier stage wrote.
	KindMissingParameter ErrorKind = "missing_parameter"

	// KindRunNotFound indicates the run id is unknown or its context already ended.
	KindRunNotFound ErrorKind = "run_not_found"

	// KindMissingRunID indicates a chained stage request did not carry a run id.
	KindMissingRunID ErrorKind = "missing_run_id"

	// KindRunSuperseded marks a run dropped because a newer run started. Never shown to users.
	KindRunSuperseded ErrorKind = "run_superseded"

	// KindInternal covers failures of the server's own collaborators (run store).
	KindInternal ErrorKind = "internal"
)

var (
	// ErrRunNotFound is returned by run stores for unknown or expired run ids.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunSuperseded is returned by the client sequencer when a newer run took over.
	ErrRunSuperseded = errors.New("run superseded")
)

// UpstreamError is returned by upstream gateway clients.
type UpstreamError struct {
	// Kind is one of the three upstream kinds.
	Kind ErrorKind

	// Service names the upstream (e.g. "randomuser").
	Service string

	// StatusCode is the upstream HTTP status for rejected calls.
	StatusCode int

	// Message is a short human-readable cause.
	Message string

	// Cause is the underlying transport or decode error, if any.
	Cause error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Service, e.Message, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// Timeout reports whether the upstream call failed because its deadline expired.
func (e *UpstreamError) Timeout() bool {
	return e.Kind == KindUpstreamUnavailable && errors.Is(e.Cause, context.DeadlineExceeded)
}

// Unavailable builds a KindUpstreamUnavailable error.
func Unavailable(service string, cause error) *UpstreamError {
	return &UpstreamError{Kind: KindUpstreamUnavailable, Service: service, Message: "upstream unreachable", Cause: cause}
}

// Rejected builds a KindUpstreamRejected error.
func Rejected(service string, status int, message string) *UpstreamError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &UpstreamError{Kind: KindUpstreamRejected, Service: service, StatusCode: status, Message: message}
}

// Malformed builds a KindMalformedPayload error.
func Malformed(service, format string, args ...any) *UpstreamError {
	return &UpstreamError{Kind: KindMalformedPayload, Service: service, Message: fmt.Sprintf(format, args...)}
}

// MissingParameterError is returned by PipelineContext.Require for unset parameters.
type MissingParameterError struct {
	Param Param
	RunID string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q for run %s", e.Param, e.RunID)
}

// StageFailure is a failure attributed to one stage of one run.
type StageFailure struct {
	Stage StageName
	Kind  ErrorKind
	Cause error
}

func (e *StageFailure) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Stage.FailureMessage(), e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Stage.FailureMessage(), e.Cause)
}

func (e *StageFailure) Unwrap() error { return e.Cause }

// HTTPStatusCode returns the status the server answers with for this failure.
func (e *StageFailure) HTTPStatusCode() int {
	switch e.Kind {
	case KindUpstreamUnavailable:
		var up *UpstreamError
		if errors.As(e.Cause, &up) && up.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case KindUpstreamRejected, KindMalformedPayload:
		return http.StatusBadGateway
	case KindMissingParameter:
		return http.StatusConflict
	case KindRunNotFound:
		return http.StatusNotFound
	case KindMissingRunID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewStageFailure attributes err to stage, deriving the kind from the error chain.
func NewStageFailure(stage StageName, err error) *StageFailure {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return sf
	}
	return &StageFailure{Stage: stage, Kind: KindOf(err), Cause: err}
}

// KindOf classifies err into the pipeline taxonomy.
func KindOf(err error) ErrorKind {
	var (
		sf *StageFailure
		up *UpstreamError
		mp *MissingParameterError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sf):
		return sf.Kind
	case errors.As(err, &up):
		return up.Kind
	case errors.As(err, &mp):
		return KindMissingParameter
	case errors.Is(err, ErrRunNotFound):
		return KindRunNotFound
	case errors.Is(err, ErrRunSuperseded):
		return KindRunSuperseded
	default:
		return KindInternal
	}
}
