package present

import (
	"fmt"
	"sync"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
)

// Event is one presenter call captured by a Recorder.
type Event struct {
	// Op is one of busy, loading, show or failed.
	Op    string
	Stage domain.StageName
	Busy  bool

	// Record is the value passed to the Show call.
	Record any

	// Currency is set for exchange rate shows.
	Currency string

	Failure sequencer.Failure
}

// String is a compact form used in test expectations, e.g. "show:news" or "derived:news".
func (e Event) String() string {
	switch e.Op {
	case "busy":
		return fmt.Sprintf("busy:%t", e.Busy)
	case "failed":
		if e.Failure.Derived {
			return "derived:" + string(e.Stage)
		}
		return "failed:" + string(e.Stage)
	default:
		return e.Op + ":" + string(e.Stage)
	}
}

// Recorder is a presenter that keeps every call in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ sequencer.Presenter = (*Recorder)(nil)

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded calls.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Trace returns the recorded calls in their String form.
func (r *Recorder) Trace() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

// Failures returns the recorded failure notifications.
func (r *Recorder) Failures() []sequencer.Failure {
	var out []sequencer.Failure
	for _, e := range r.Events() {
		if e.Op == "failed" {
			out = append(out, e.Failure)
		}
	}
	return out
}

func (r *Recorder) Busy(busy bool) { r.add(Event{Op: "busy", Busy: busy}) }

func (r *Recorder) Loading(stage domain.StageName) { r.add(Event{Op: "loading", Stage: stage}) }

func (r *Recorder) ShowPerson(p *domain.Person) {
	r.add(Event{Op: "show", Stage: domain.StagePerson, Record: p})
}

func (r *Recorder) ShowCountry(c *domain.CountryProfile) {
	r.add(Event{Op: "show", Stage: domain.StageCountry, Record: c})
}

func (r *Recorder) ShowExchange(currency string, q *domain.ExchangeQuote) {
	r.add(Event{Op: "show", Stage: domain.StageExchange, Record: q, Currency: currency})
}

func (r *Recorder) ShowNews(list domain.HeadlineList) {
	r.add(Event{Op: "show", Stage: domain.StageNews, Record: list})
}

func (r *Recorder) Failed(f sequencer.Failure) {
	r.add(Event{Op: "failed", Stage: f.Stage, Failure: f})
}
