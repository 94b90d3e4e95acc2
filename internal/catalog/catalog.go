package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"brettonwoods/internal/domain"
)

var (
	ErrNoCountries = errors.New("catalog has no countries")
	ErrNoIssues    = errors.New("catalog has no issues")
)

// Catalog is an immutable set of countries and issues. Issues are kept in
// play order.
type Catalog struct {
	countries   []domain.Country
	issues      []domain.Issue
	countryByID map[string]domain.Country
	issueByID   map[string]domain.Issue
}

var _ domain.Catalog = (*Catalog)(nil)

// file is the YAML layout of a catalog override
type file struct {
	Countries []domain.Country `yaml:"countries"`
	Issues    []domain.Issue   `yaml:"issues"`
}

// New validates and indexes a catalog
func New(countries []domain.Country, issues []domain.Issue) (*Catalog, error) {
	if len(countries) == 0 {
		return nil, ErrNoCountries
	}
	if len(issues) == 0 {
		return nil, ErrNoIssues
	}

	c := &Catalog{
		countries:   make([]domain.Country, 0, len(countries)),
		issues:      make([]domain.Issue, 0, len(issues)),
		countryByID: make(map[string]domain.Country, len(countries)),
		issueByID:   make(map[string]domain.Issue, len(issues)),
	}

	for _, country := range countries {
		country.Code = strings.ToUpper(strings.TrimSpace(country.Code))
		if country.Code == "" {
			return nil, fmt.Errorf("country %q: empty code", country.Name)
		}
		if _, dup := c.countryByID[country.Code]; dup {
			return nil, fmt.Errorf("country %s: duplicate code", country.Code)
		}
		c.countries = append(c.countries, country)
		c.countryByID[country.Code] = country
	}

	for _, issue := range issues {
		if issue.ID == "" {
			return nil, fmt.Errorf("issue %q: empty id", issue.Title)
		}
		if _, dup := c.issueByID[issue.ID]; dup {
			return nil, fmt.Errorf("issue %s: duplicate id", issue.ID)
		}
		if len(issue.Options) == 0 {
			return nil, fmt.Errorf("issue %s: no options", issue.ID)
		}

		optionIDs := make(map[string]bool, len(issue.Options))
		options := make([]domain.Option, 0, len(issue.Options))
		for _, o := range issue.Options {
			if o.ID == "" || o.Letter == "" {
				return nil, fmt.Errorf("issue %s: option needs id and letter", issue.ID)
			}
			if optionIDs[o.ID] {
				return nil, fmt.Errorf("issue %s: duplicate option %s", issue.ID, o.ID)
			}
			optionIDs[o.ID] = true
			o.Favors = normalizeCodes(o.Favors)
			o.Opposes = normalizeCodes(o.Opposes)

			for _, code := range append(append([]string(nil), o.Favors...), o.Opposes...) {
				if _, ok := c.countryByID[code]; !ok {
					return nil, fmt.Errorf("issue %s option %s: unknown country %s", issue.ID, o.ID, code)
				}
			}
			options = append(options, o)
		}
		issue.Options = options

		c.issues = append(c.issues, issue)
		c.issueByID[issue.ID] = issue
	}

	return c, nil
}

func normalizeCodes(codes []string) []string {
	if codes == nil {
		return nil
	}
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	return out
}

// Load reads a catalog from a YAML file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	return New(f.Countries, f.Issues)
}

// LoadOrDefault loads the catalog at path, or the built-in conference
// catalog when path is empty
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Countries returns every country in catalog order
func (c *Catalog) Countries() []domain.Country {
	out := make([]domain.Country, len(c.countries))
	copy(out, c.countries)
	return out
}

// Country looks up a country by code
func (c *Catalog) Country(code string) (domain.Country, bool) {
	country, ok := c.countryByID[strings.ToUpper(code)]
	return country, ok
}

// Issues returns every issue in play order
func (c *Catalog) Issues() []domain.Issue {
	out := make([]domain.Issue, len(c.issues))
	copy(out, c.issues)
	return out
}

// Issue looks up an issue by ID
func (c *Catalog) Issue(id string) (domain.Issue, bool) {
	issue, ok := c.issueByID[id]
	return issue, ok
}
