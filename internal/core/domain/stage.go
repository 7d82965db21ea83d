// Package domain provides the core types shared by the dashboard server and client:
// stage names, normalized stage records, the per-run pipeline context and the error taxonomy.
package domain

// StageName identifies one step of the dashboard chain.
// The value doubles as the human-readable failure tag shown to users.
type StageName string

const (
	// StagePerson fetches one random person. It starts every run.
	StagePerson StageName = "random user"

	// StageCountry fetches the person's country profile.
	StageCountry StageName = "country info"

	// StageExchange fetches conversion rates for the country's currency.
	StageExchange StageName = "exchange rate"

	// StageNews fetches top headlines for the country's ISO code. It ends every run.
	StageNews StageName = "news"

	// StageCountryBrief is the auxiliary countrylayer lookup (name and capital only).
	// It is not part of the four-stage chain.
	StageCountryBrief StageName = "country brief"
)

// Stages lists the chain in execution order.
var Stages = []StageName{StagePerson, StageCountry, StageExchange, StageNews}

// Index returns the zero-based position of s in the chain, or -1 for auxiliary stages.
func (s StageName) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// FailureMessage is the user-facing prefix used when this stage fails.
func (s StageName) FailureMessage() string {
	switch s {
	case StagePerson:
		return "Failed to fetch random user"
	case StageCountry, StageCountryBrief:
		return "Failed to fetch country info"
	case StageExchange:
		return "Failed to fetch exchange rate"
	case StageNews:
		return "Failed to fetch news"
	default:
		return "Failed to fetch " + string(s)
	}
}

func (s StageName) String() string { return string(s) }
