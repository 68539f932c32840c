// Package filter holds the typed search filters shared by every retrieval branch.
package filter

import (
	"regexp"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// Indexed attribute names the filters resolve to.
const (
	FieldCategory   = "category"
	FieldLanguage   = "language"
	FieldPopularity = "popularity"
)

var (
	categoryRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	languageRe = regexp.MustCompile(`^[a-z]{2,3}$`)
)

// Filters restricts retrieval to a subset of the catalogue.
// The zero value matches everything.
type Filters struct {
	category      string
	language      string
	minPopularity *float64
}

// New validates and creates Filters. Empty strings and a nil bound disable a filter.
func New(category, language string, minPopularity *float64) (Filters, error) {
	if category != "" && !categoryRe.MatchString(category) {
		return Filters{}, domain.InvalidQueryf("invalid category %q", category)
	}
	if language != "" && !languageRe.MatchString(language) {
		return Filters{}, domain.InvalidQueryf("invalid language %q", language)
	}
	if minPopularity != nil && *minPopularity < 0 {
		return Filters{}, domain.InvalidQueryf("min_popularity must be non-negative")
	}
	return Filters{category: category, language: language, minPopularity: minPopularity}, nil
}

// Category returns the category restriction.
func (f Filters) Category() string { return f.category }

// Language returns the content language restriction.
func (f Filters) Language() string { return f.language }

// MinPopularity returns the inclusive popularity lower bound.
func (f Filters) MinPopularity() *float64 { return f.minPopularity }

// IsEmpty reports whether no restriction is set.
func (f Filters) IsEmpty() bool {
	return f.category == "" && f.language == "" && f.minPopularity == nil
}

// Matches evaluates the filters against item attributes in memory.
func (f Filters) Matches(category, language string, popularity float64) bool {
	if f.category != "" && f.category != category {
		return false
	}
	if f.language != "" && f.language != language {
		return false
	}
	if f.minPopularity != nil && popularity < *f.minPopularity {
		return false
	}
	return true
}

// Conditions flattens the filters into conjunctive index conditions.
func (f Filters) Conditions() []Condition {
	var out []Condition
	if f.category != "" {
		out = append(out, Condition{field: FieldCategory, tag: f.category})
	}
	if f.language != "" {
		out = append(out, Condition{field: FieldLanguage, tag: f.language})
	}
	if f.minPopularity != nil {
		v := *f.minPopularity
		out = append(out, Condition{field: FieldPopularity, min: &v})
	}
	return out
}

// Condition is a single conjunctive clause: a tag match or a numeric lower bound.
type Condition struct {
	field string
	tag   string
	min   *float64
}

// Field returns the indexed attribute name.
func (c Condition) Field() string { return c.field }

// Tag returns the exact tag value.
func (c Condition) Tag() string { return c.tag }

// Min returns the inclusive numeric lower bound.
func (c Condition) Min() *float64 { return c.min }

// IsTag reports whether this is a tag condition.
func (c Condition) IsTag() bool { return c.tag != "" }
