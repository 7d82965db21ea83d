package domain

// Person is the normalized record produced by the random user stage.
type Person struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Gender      string `json:"gender"`
	Age         int    `json:"age"`
	DateOfBirth string `json:"dateOfBirth"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	Picture     string `json:"picture"`
}

// CountryProfile is the normalized record produced by the country info stage.
type CountryProfile struct {
	Name      string   `json:"name"`
	Capital   []string `json:"capital"`
	Languages []string `json:"languages"`
	Currency  string   `json:"currency"`
	FlagURL   string   `json:"flagUrl"`

	// ISOCode is the lowercased two-letter code. It feeds the news stage and is
	// not part of the rendered record.
	ISOCode string `json:"-"`
}

// ExchangeQuote is the normalized record produced by the exchange rate stage:
// how much one unit of the country's currency is worth in USD and EUR.
type ExchangeQuote struct {
	USD float64 `json:"usd"`
	EUR float64 `json:"eur"`
}

// Headline is one entry of a HeadlineList.
type Headline struct {
	Title       string `json:"title"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	URL         string `json:"url"`
}

// HeadlineList is the normalized record produced by the news stage.
// It holds every article the upstream returned; display truncation happens in presenters.
type HeadlineList []Headline

// CountryBrief is the record produced by the auxiliary countrylayer lookup.
type CountryBrief struct {
	Name    string `json:"name"`
	Capital string `json:"capital"`
}
