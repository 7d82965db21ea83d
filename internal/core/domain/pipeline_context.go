package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Param names a value one stage derives for a later stage.
type Param string

const (
	// ParamSubjectCountry is written by the random user stage and read by the country stages.
	ParamSubjectCountry Param = "subject_country_name"

	// ParamCurrencyCode is written by the country stage and read by the exchange stage.
	ParamCurrencyCode Param = "currency_code"

	// ParamCountryISO is written by the country stage and read by the news stage.
	ParamCountryISO Param = "country_iso_code"
)

// PipelineContext carries derived parameters between the stages of exactly one run.
// A context is created when a run begins and discarded when it ends. It is never
// shared between runs; run stores hand out independent copies.
type PipelineContext struct {
	runID     string
	values    map[Param]string
	createdAt time.Time
	dirty     bool
}

// NewPipelineContext creates an empty context for runID.
func NewPipelineContext(runID string) *PipelineContext {
	return &PipelineContext{
		runID:     runID,
		values:    make(map[Param]string),
		createdAt: time.Now().UTC(),
	}
}

// RunID returns the run this context belongs to.
func (pc *PipelineContext) RunID() string { return pc.runID }

// CreatedAt returns when the run began.
func (pc *PipelineContext) CreatedAt() time.Time { return pc.createdAt }

// Set stores value under param, overwriting any earlier value.
func (pc *PipelineContext) Set(param Param, value string) {
	if old, ok := pc.values[param]; ok && old == value {
		return
	}
	pc.values[param] = value
	pc.dirty = true
}

// Require returns the value of param or a *MissingParameterError if no stage set it.
// An empty string is never returned as a stand-in for a missing value.
func (pc *PipelineContext) Require(param Param) (string, error) {
	v, ok := pc.values[param]
	if !ok {
		return "", &MissingParameterError{Param: param, RunID: pc.runID}
	}
	return v, nil
}

// Has reports whether param was set.
func (pc *PipelineContext) Has(param Param) bool {
	_, ok := pc.values[param]
	return ok
}

// Dirty reports whether Set changed the context since it was created or loaded.
func (pc *PipelineContext) Dirty() bool { return pc.dirty }

// Clone returns an independent copy that is not dirty.
func (pc *PipelineContext) Clone() *PipelineContext {
	return &PipelineContext{
		runID:     pc.runID,
		values:    maps.Clone(pc.values),
		createdAt: pc.createdAt,
	}
}

type pipelineContextJSON struct {
	RunID     string           `json:"run_id"`
	Values    map[Param]string `json:"values"`
	CreatedAt time.Time        `json:"created_at"`
}

// MarshalJSON encodes the context for run stores that keep it outside process memory.
func (pc *PipelineContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(pipelineContextJSON{
		RunID:     pc.runID,
		Values:    pc.values,
		CreatedAt: pc.createdAt,
	})
}

// UnmarshalJSON restores a context encoded by MarshalJSON. The result is not dirty.
func (pc *PipelineContext) UnmarshalJSON(data []byte) error {
	var raw pipelineContextJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode pipeline context: %w", err)
	}
	if raw.RunID == "" {
		return fmt.Errorf("decode pipeline context: missing run_id")
	}
	pc.runID = raw.RunID
	pc.values = raw.Values
	if pc.values == nil {
		pc.values = make(map[Param]string)
	}
	pc.createdAt = raw.CreatedAt
	pc.dirty = false
	return nil
}
