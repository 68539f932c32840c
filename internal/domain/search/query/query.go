// Package query holds the structured form of a raw search query.
package query

import "strings"

// EntityKind classifies an extracted entity.
type EntityKind string

// Entity kinds.
const (
	EntityPhrase EntityKind = "phrase"
	EntityTopic  EntityKind = "topic"
	EntityYear   EntityKind = "year"
)

// Entity is a span recognized in the query.
type Entity struct {
	Kind  EntityKind `json:"kind"`
	Value string     `json:"value"`
}

// Intent tags the query's purpose.
type Intent string

// Intent tags.
const (
	IntentExplore      Intent = "explore"
	IntentQuestion     Intent = "question"
	IntentNavigational Intent = "navigational"
	IntentKeyword      Intent = "keyword"
)

// Query is the output of query understanding.
type Query struct {
	Raw      string
	Terms    []string
	Language string
	Entities []Entity
	// Expanded holds synonyms and morphological variants not already in Terms.
	Expanded []string
	Intent   Intent
}

// IsEmpty reports whether the query carries no searchable terms.
func (q Query) IsEmpty() bool { return len(q.Terms) == 0 && len(q.Expanded) == 0 }

// AllTerms returns Terms followed by Expanded, without duplicates.
func (q Query) AllTerms() []string {
	seen := make(map[string]struct{}, len(q.Terms)+len(q.Expanded))
	out := make([]string, 0, len(q.Terms)+len(q.Expanded))
	for _, group := range [][]string{q.Terms, q.Expanded} {
		for _, t := range group {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Text is the normalized query text handed to the embedding provider.
func (q Query) Text() string { return strings.Join(q.Terms, " ") }
