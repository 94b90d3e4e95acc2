package domain

import (
	"slices"
	"sort"
)

// Country is a delegation players can represent
type Country struct {
	Code   string `json:"code" yaml:"code"`
	Name   string `json:"name" yaml:"name"`
	Emblem string `json:"emblem" yaml:"emblem"`
	Color  string `json:"color" yaml:"color"`
}

// Option is one proposal under an issue
type Option struct {
	ID      string   `json:"id" yaml:"id"`
	Letter  string   `json:"letter" yaml:"letter"`
	Text    string   `json:"text" yaml:"text"`
	Favors  []string `json:"favors" yaml:"favors"`
	Opposes []string `json:"opposes" yaml:"opposes"`
}

// FavorsCountry reports whether the option favors the given country
func (o Option) FavorsCountry(code string) bool {
	return slices.Contains(o.Favors, code)
}

// OpposesCountry reports whether the option opposes the given country
func (o Option) OpposesCountry(code string) bool {
	return slices.Contains(o.Opposes, code)
}

// Issue is one conference agenda item, resolved in a single round
type Issue struct {
	ID                string   `json:"id" yaml:"id"`
	Title             string   `json:"title" yaml:"title"`
	Description       string   `json:"description" yaml:"description"`
	HistoricalContext string   `json:"historicalContext" yaml:"historical_context"`
	Options           []Option `json:"options" yaml:"options"`
}

// Option returns the option with the given ID
func (i Issue) Option(optionID string) (Option, bool) {
	for _, o := range i.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return Option{}, false
}

// OptionsByLetter returns the options ordered by letter. Options sharing a
// letter keep their catalog order.
func (i Issue) OptionsByLetter() []Option {
	ordered := make([]Option, len(i.Options))
	copy(ordered, i.Options)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Letter < ordered[b].Letter
	})
	return ordered
}

// Catalog is the read-only reference data a game is played against
type Catalog interface {
	Countries() []Country
	Country(code string) (Country, bool)
	Issues() []Issue
	Issue(id string) (Issue, bool)
}
