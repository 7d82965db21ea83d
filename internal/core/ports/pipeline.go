// Package ports defines the core interfaces for the dashboard server.
// This file contains the stage executor interface.
package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// Stage wraps exactly one upstream call of the dashboard chain.
type Stage interface {
	// Name returns the stage identifier, also used as failure tag.
	Name() domain.StageName

	// Terminal reports whether a successful execution ends the run.
	Terminal() bool

	// Execute reads the parameters it needs from pc, performs the upstream call,
	// writes any parameters later stages need into pc and returns the normalized record.
	// It never returns a partially filled record alongside an error.
	Execute(ctx context.Context, pc *domain.PipelineContext) (any, error)
}

// PersonSource returns random people.
type PersonSource interface {
	RandomPerson(ctx context.Context) (*domain.Person, error)
}

// CountrySource looks up country profiles by name.
type CountrySource interface {
	CountryByName(ctx context.Context, name string) (*domain.CountryProfile, error)
}

// CountryBriefSource looks up the short countrylayer record by name.
type CountryBriefSource interface {
	CountryBrief(ctx context.Context, name string) (*domain.CountryBrief, error)
}

// ExchangeSource returns USD and EUR rates for a base currency.
type ExchangeSource interface {
	LatestRates(ctx context.Context, base string) (*domain.ExchangeQuote, error)
}

// HeadlineSource returns top headlines for a two-letter country code.
type HeadlineSource interface {
	TopHeadlines(ctx context.Context, country string) (domain.HeadlineList, error)
}
