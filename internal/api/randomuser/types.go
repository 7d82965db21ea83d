// Package randomuser is the upstream gateway for https://randomuser.me.
package randomuser

import (
	"encoding/json"
	"strings"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// Response is the top-level randomuser.me payload.
type Response struct {
	Results []User `json:"results"`
	Error   string `json:"error,omitempty"`
}

// User is one generated person.
type User struct {
	Gender   string   `json:"gender"`
	Name     Name     `json:"name"`
	Location Location `json:"location"`
	DOB      DOB      `json:"dob"`
	Picture  Picture  `json:"picture"`
}

type Name struct {
	Title string `json:"title"`
	First string `json:"first"`
	Last  string `json:"last"`
}

type Location struct {
	Street  Street `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type Street struct {
	Number StreetNumber `json:"number"`
	Name   string       `json:"name"`
}

// StreetNumber is usually a JSON number but the generator has been seen emitting strings.
type StreetNumber string

func (n *StreetNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = StreetNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = StreetNumber(num.String())
	return nil
}

type DOB struct {
	Date string `json:"date"`
	Age  int    `json:"age"`
}

type Picture struct {
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Thumbnail string `json:"thumbnail"`
}

// ToPerson normalizes u. The country is required because the next stage depends on it.
func (u User) ToPerson() (*domain.Person, error) {
	country := strings.TrimSpace(u.Location.Country)
	if country == "" {
		return nil, domain.Malformed(serviceName, "person has no country")
	}

	return &domain.Person{
		FirstName:   u.Name.First,
		LastName:    u.Name.Last,
		Gender:      u.Gender,
		Age:         u.DOB.Age,
		DateOfBirth: u.DOB.Date,
		City:        u.Location.City,
		Country:     country,
		Address:     strings.TrimSpace(u.Location.Street.Name + " " + string(u.Location.Street.Number)),
		Picture:     u.Picture.Large,
	}, nil
}
