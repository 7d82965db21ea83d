package pipeline

import (
	"fmt"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
)

// Sources are the upstream gateways the stages call.
type Sources struct {
	People    ports.PersonSource
	Countries ports.CountrySource
	Rates     ports.ExchangeSource
	Headlines ports.HeadlineSource
	Briefs    ports.CountryBriefSource // optional
}

// NewStages builds the chain stages in execution order, followed by the
// country brief stage when a brief source is configured.
func NewStages(src Sources) ([]ports.Stage, error) {
	switch {
	case src.People == nil:
		return nil, fmt.Errorf("pipeline: no person source configured")
	case src.Countries == nil:
		return nil, fmt.Errorf("pipeline: no country source configured")
	case src.Rates == nil:
		return nil, fmt.Errorf("pipeline: no exchange source configured")
	case src.Headlines == nil:
		return nil, fmt.Errorf("pipeline: no headline source configured")
	}

	stages := []ports.Stage{
		NewPersonStage(src.People),
		NewCountryStage(src.Countries),
		NewExchangeStage(src.Rates),
		NewNewsStage(src.Headlines),
	}
	if src.Briefs != nil {
		stages = append(stages, NewCountryBriefStage(src.Briefs))
	}
	return stages, nil
}
