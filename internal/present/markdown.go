// Package present renders dashboard runs.
package present

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/markdown"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
)

// MaxHeadlines is how many headlines a run shows.
const MaxHeadlines = 6

const placeholder = "-"

// sectionTitle is the heading each stage renders under.
func sectionTitle(stage domain.StageName) string {
	switch stage {
	case domain.StagePerson:
		return "Random User"
	case domain.StageCountry:
		return "Country"
	case domain.StageExchange:
		return "Exchange Rates"
	case domain.StageNews:
		return "Top Headlines"
	default:
		return string(stage)
	}
}

// loadingLabel is the progress text shown while stage is pending.
func loadingLabel(stage domain.StageName) string {
	switch stage {
	case domain.StagePerson:
		return "Fetching random user..."
	case domain.StageCountry:
		return "Fetching country info..."
	case domain.StageExchange:
		return "Fetching exchange rates..."
	case domain.StageNews:
		return "Fetching top headlines..."
	default:
		return "Fetching " + string(stage) + "..."
	}
}

// failureTitle is the headline of a stage's error state.
func failureTitle(stage domain.StageName) string {
	switch stage {
	case domain.StagePerson:
		return "Failed to load user"
	case domain.StageCountry:
		return "Failed to load country info"
	case domain.StageExchange:
		return "Failed to load exchange rates"
	case domain.StageNews:
		return "Failed to load news headlines"
	default:
		return "Failed to load " + string(stage)
	}
}

// MarkdownOption configures a Markdown presenter.
type MarkdownOption func(*Markdown)

// WithProgress sends loading and busy notices to w. They are dropped by default.
func WithProgress(w io.Writer) MarkdownOption {
	return func(m *Markdown) {
		if w != nil {
			m.progress = w
		}
	}
}

// Markdown writes each stage of a run as a markdown section.
type Markdown struct {
	mu       sync.Mutex
	out      io.Writer
	progress io.Writer
	err      error
}

var _ sequencer.Presenter = (*Markdown)(nil)

// NewMarkdown creates a presenter writing to out.
func NewMarkdown(out io.Writer, opts ...MarkdownOption) *Markdown {
	m := &Markdown{out: out, progress: io.Discard}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Err returns the first write error, if any.
func (m *Markdown) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Markdown) render(fn func(md *markdown.Markdown)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md := markdown.NewMarkdown(m.out)
	fn(md)
	if err := md.Build(); err != nil && m.err == nil {
		m.err = err
	}
}

func (m *Markdown) Busy(busy bool) {
	if busy {
		fmt.Fprintln(m.progress, "Loading dashboard...")
		return
	}
	fmt.Fprintln(m.progress, "Done.")
}

func (m *Markdown) Loading(stage domain.StageName) {
	fmt.Fprintln(m.progress, loadingLabel(stage))
}

func (m *Markdown) ShowPerson(p *domain.Person) {
	m.render(func(md *markdown.Markdown) {
		md.H2(sectionTitle(domain.StagePerson))
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Field", "Value"},
			Rows: [][]string{
				{"Name", strings.TrimSpace(p.FirstName + " " + p.LastName)},
				{"Gender", orPlaceholder(p.Gender)},
				{"Age", strconv.Itoa(p.Age) + " years"},
				{"Date of birth", FormatDate(p.DateOfBirth)},
				{"City", orPlaceholder(p.City)},
				{"Country", orPlaceholder(p.Country)},
				{"Address", orPlaceholder(p.Address)},
				{"Picture", orPlaceholder(p.Picture)},
			},
		})
		md.PlainText("")
	})
}

func (m *Markdown) ShowCountry(c *domain.CountryProfile) {
	m.render(func(md *markdown.Markdown) {
		md.H2(sectionTitle(domain.StageCountry) + ": " + c.Name)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Field", "Value"},
			Rows: [][]string{
				{"Capital", joinOrPlaceholder(c.Capital)},
				{"Languages", joinOrPlaceholder(c.Languages)},
				{"Currency", orPlaceholder(c.Currency)},
				{"Flag", orPlaceholder(c.FlagURL)},
			},
		})
		md.PlainText("")
	})
}

func (m *Markdown) ShowExchange(currency string, q *domain.ExchangeQuote) {
	m.render(func(md *markdown.Markdown) {
		md.H2(ExchangeHeading(currency))
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Currency", "Rate"},
			Rows: [][]string{
				{"USD", formatRate(q.USD)},
				{"EUR", formatRate(q.EUR)},
			},
		})
		md.PlainText("")
	})
}

func (m *Markdown) ShowNews(list domain.HeadlineList) {
	m.render(func(md *markdown.Markdown) {
		md.H2(sectionTitle(domain.StageNews))
		md.PlainText("")

		top := TopHeadlines(list)
		if len(top) == 0 {
			md.PlainText("No headlines found")
			md.PlainText("")
			return
		}

		items := make([]string, len(top))
		for i, h := range top {
			items[i] = headlineItem(h)
		}
		md.BulletList(items...)
		md.PlainText("")
	})
}

func (m *Markdown) Failed(f sequencer.Failure) {
	m.render(func(md *markdown.Markdown) {
		md.H2(sectionTitle(f.Stage))
		md.PlainText("")
		if f.Derived {
			md.Warningf("%s: %s", failureTitle(f.Stage), f.Message)
		} else {
			md.Cautionf("%s: %s", failureTitle(f.Stage), f.Message)
		}
		md.PlainText("")
	})
}

// ExchangeHeading titles the exchange section for currency.
func ExchangeHeading(currency string) string {
	if currency == "" {
		return "Exchange Rates"
	}
	return "Exchange Rates for " + currency
}

// TopHeadlines returns at most MaxHeadlines entries of list.
func TopHeadlines(list domain.HeadlineList) domain.HeadlineList {
	if len(list) > MaxHeadlines {
		return list[:MaxHeadlines]
	}
	return list
}

// FormatDate renders an RFC 3339 timestamp as a calendar date.
// Unparseable values render as a placeholder.
func FormatDate(s string) string {
	if s == "" {
		return placeholder
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return placeholder
	}
	return t.UTC().Format("2006-01-02")
}

func headlineItem(h domain.Headline) string {
	title := h.Title
	if title == "" {
		title = "Untitled"
	}
	url := h.URL
	if url == "" {
		url = "#"
	}

	item := fmt.Sprintf("[%s](%s)", title, url)
	if h.Source != "" {
		item += " (" + h.Source + ")"
	}
	if h.Description != "" {
		item += ": " + h.Description
	}
	return item
}

func formatRate(v float64) string {
	if v == 0 {
		return placeholder
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func joinOrPlaceholder(values []string) string {
	if len(values) == 0 {
		return placeholder
	}
	return strings.Join(values, ", ")
}
