package pipeline

import (
	"context"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
)

// PersonStage fetches one random person and records their country for the next stage.
type PersonStage struct {
	source ports.PersonSource
}

// NewPersonStage creates the first stage of the chain.
func NewPersonStage(source ports.PersonSource) *PersonStage {
	return &PersonStage{source: source}
}

func (s *PersonStage) Name() domain.StageName { return domain.StagePerson }
func (s *PersonStage) Terminal() bool         { return false }

func (s *PersonStage) Execute(ctx context.Context, pc *domain.PipelineContext) (any, error) {
	p, err := s.source.RandomPerson(ctx)
	if err != nil {
		return nil, err
	}
	pc.Set(domain.ParamSubjectCountry, p.Country)
	return p, nil
}

// CountryStage looks up the subject country and records its currency and ISO code.
type CountryStage struct {
	source ports.CountrySource
}

// NewCountryStage creates the second stage of the chain.
func NewCountryStage(source ports.CountrySource) *CountryStage {
	return &CountryStage{source: source}
}

func (s *CountryStage) Name() domain.StageName { return domain.StageCountry }
func (s *CountryStage) Terminal() bool         { return false }

func (s *CountryStage) Execute(ctx context.Context, pc *domain.PipelineContext) (any, error) {
	name, err := pc.Require(domain.ParamSubjectCountry)
	if err != nil {
		return nil, err
	}

	profile, err := s.source.CountryByName(ctx, name)
	if err != nil {
		return nil, err
	}

	pc.Set(domain.ParamCurrencyCode, profile.Currency)
	pc.Set(domain.ParamCountryISO, profile.ISOCode)
	return profile, nil
}

// ExchangeStage fetches USD and EUR rates for the subject country's currency.
type ExchangeStage struct {
	source ports.ExchangeSource
}

// NewExchangeStage creates the third stage of the chain.
func NewExchangeStage(source ports.ExchangeSource) *ExchangeStage {
	return &ExchangeStage{source: source}
}

func (s *ExchangeStage) Name() domain.StageName { return domain.StageExchange }
func (s *ExchangeStage) Terminal() bool         { return false }

func (s *ExchangeStage) Execute(ctx context.Context, pc *domain.PipelineContext) (any, error) {
	code, err := pc.Require(domain.ParamCurrencyCode)
	if err != nil {
		return nil, err
	}
	return s.source.LatestRates(ctx, code)
}

// NewsStage fetches top headlines for the subject country. It ends the run.
type NewsStage struct {
	source ports.HeadlineSource
}

// NewNewsStage creates the last stage of the chain.
func NewNewsStage(source ports.HeadlineSource) *NewsStage {
	return &NewsStage{source: source}
}

func (s *NewsStage) Name() domain.StageName { return domain.StageNews }
func (s *NewsStage) Terminal() bool         { return true }

func (s *NewsStage) Execute(ctx context.Context, pc *domain.PipelineContext) (any, error) {
	iso, err := pc.Require(domain.ParamCountryISO)
	if err != nil {
		return nil, err
	}
	return s.source.TopHeadlines(ctx, iso)
}

// CountryBriefStage looks up the subject country in the countrylayer directory.
// It sits beside the chain: it reads the subject country and writes nothing.
type CountryBriefStage struct {
	source ports.CountryBriefSource
}

// NewCountryBriefStage creates the auxiliary country brief stage.
func NewCountryBriefStage(source ports.CountryBriefSource) *CountryBriefStage {
	return &CountryBriefStage{source: source}
}

func (s *CountryBriefStage) Name() domain.StageName { return domain.StageCountryBrief }
func (s *CountryBriefStage) Terminal() bool         { return false }

func (s *CountryBriefStage) Execute(ctx context.Context, pc *domain.PipelineContext) (any, error) {
	name, err := pc.Require(domain.ParamSubjectCountry)
	if err != nil {
		return nil, err
	}
	return s.source.CountryBrief(ctx, name)
}

var (
	_ ports.Stage = (*PersonStage)(nil)
	_ ports.Stage = (*CountryStage)(nil)
	_ ports.Stage = (*ExchangeStage)(nil)
	_ ports.Stage = (*NewsStage)(nil)
	_ ports.Stage = (*CountryBriefStage)(nil)
)
