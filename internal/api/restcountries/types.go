// Package restcountries is the upstream gateway for https://restcountries.com (v3.1).
package restcountries

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// Country is one entry of a /v3.1/name response. Only the fields the dashboard uses are decoded.
type Country struct {
	Name       CountryName   `json:"name"`
	Capital    []string      `json:"capital"`
	Languages  OrderedObject `json:"languages"`
	Currencies OrderedObject `json:"currencies"`
	Flags      Flags         `json:"flags"`
	CCA2       string        `json:"cca2"`
}

type CountryName struct {
	Common   string `json:"common"`
	Official string `json:"official"`
}

type Flags struct {
	PNG string `json:"png"`
	SVG string `json:"svg"`
	Alt string `json:"alt"`
}

// Field is one member of an OrderedObject.
type Field struct {
	Key   string
	Value json.RawMessage
}

// OrderedObject is a JSON object decoded with its member order preserved.
// The dashboard picks the "first" currency, which only means something in document order.
type OrderedObject []Field

func (o *OrderedObject) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	var fields OrderedObject
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = fields
	return nil
}

// Keys returns the member names in document order.
func (o OrderedObject) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, f := range o {
		keys = append(keys, f.Key)
	}
	return keys
}

// StringValues returns the members whose values are JSON strings, in document order.
func (o OrderedObject) StringValues() []string {
	values := make([]string, 0, len(o))
	for _, f := range o {
		var s string
		if err := json.Unmarshal(f.Value, &s); err == nil {
			values = append(values, s)
		}
	}
	return values
}

// ToProfile normalizes c. Both derived parameters (currency and ISO code) are required.
func (c Country) ToProfile() (*domain.CountryProfile, error) {
	currencies := c.Currencies.Keys()
	if len(currencies) == 0 {
		return nil, domain.Malformed(serviceName, "country %q has no currencies", c.Name.Common)
	}
	iso := strings.ToLower(strings.TrimSpace(c.CCA2))
	if len(iso) != 2 {
		return nil, domain.Malformed(serviceName, "country %q has invalid cca2 %q", c.Name.Common, c.CCA2)
	}

	capital := c.Capital
	if capital == nil {
		capital = []string{}
	}

	return &domain.CountryProfile{
		Name:      c.Name.Common,
		Capital:   capital,
		Languages: c.Languages.StringValues(),
		Currency:  currencies[0],
		FlagURL:   c.Flags.PNG,
		ISOCode:   iso,
	}, nil
}
