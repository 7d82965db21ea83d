package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "unavailable",
			err:      Unavailable("randomuser", errors.New("dial tcp: refused")),
			expected: KindUpstreamUnavailable,
		},
		{
			name:     "rejected wrapped",
			err:      fmt.Errorf("fetch: %w", Rejected("newsapi", http.StatusUnauthorized, "apiKeyInvalid")),
			expected: KindUpstreamRejected,
		},
		{
			name:     "malformed",
			err:      Malformed("restcountries", "no currencies for %q", "Antarctica"),
			expected: KindMalformedPayload,
		},
		{
			name:     "missing parameter",
			err:      &MissingParameterError{Param: ParamCurrencyCode, RunID: "r1"},
			expected: KindMissingParameter,
		},
		{
			name:     "run not found",
			err:      fmt.Errorf("load: %w", ErrRunNotFound),
			expected: KindRunNotFound,
		},
		{
			name:     "superseded",
			err:      ErrRunSuperseded,
			expected: KindRunSuperseded,
		},
		{
			name:     "anything else",
			err:      errors.New("disk full"),
			expected: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStageFailure_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "upstream unreachable",
			err:      Unavailable("randomuser", errors.New("connection reset")),
			expected: http.StatusBadGateway,
		},
		{
			name:     "upstream timeout",
			err:      Unavailable("randomuser", fmt.Errorf("get: %w", context.DeadlineExceeded)),
			expected: http.StatusGatewayTimeout,
		},
		{
			name:     "upstream rejected",
			err:      Rejected("exchangerate", http.StatusNotFound, ""),
			expected: http.StatusBadGateway,
		},
		{
			name:     "malformed",
			err:      Malformed("newsapi", "bad json"),
			expected: http.StatusBadGateway,
		},
		{
			name:     "missing parameter",
			err:      &MissingParameterError{Param: ParamCountryISO},
			expected: http.StatusConflict,
		},
		{
			name:     "run not found",
			err:      ErrRunNotFound,
			expected: http.StatusNotFound,
		},
		{
			name:     "internal",
			err:      errors.New("boom"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewStageFailure(StageCountry, tt.err)
			if got := f.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestNewStageFailure_KeepsExistingAttribution(t *testing.T) {
	inner := NewStageFailure(StageCountry, Rejected("restcountries", http.StatusNotFound, "Not Found"))
	outer := NewStageFailure(StageExchange, fmt.Errorf("wrapped: %w", inner))

	if outer.Stage != StageCountry {
		t.Errorf("Stage = %q, want %q", outer.Stage, StageCountry)
	}
	if outer.Kind != KindUpstreamRejected {
		t.Errorf("Kind = %q, want %q", outer.Kind, KindUpstreamRejected)
	}
}

func TestStageFailure_Error(t *testing.T) {
	f := NewStageFailure(StageCountry, Rejected("restcountries", http.StatusNotFound, "Not Found"))
	want := "Failed to fetch country info: restcountries: Not Found (status 404)"
	if got := f.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var up *UpstreamError
	if !errors.As(f, &up) {
		t.Fatal("expected StageFailure to unwrap to *UpstreamError")
	}
}

func TestStageName_Index(t *testing.T) {
	for i, s := range Stages {
		if s.Index() != i {
			t.Errorf("%q.Index() = %d, want %d", s, s.Index(), i)
		}
	}
	if StageCountryBrief.Index() != -1 {
		t.Errorf("auxiliary stage should not have a chain index")
	}
}
