// Package query turns raw query text into terms, language, entities and
// expansions. It performs no I/O.
package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"

	domquery "github.com/kailas-cloud/discovery/internal/domain/search/query"
)

var (
	phraseRe  = regexp.MustCompile(`["“”«»]([^"“”«»]+)["“”«»]`)
	hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	yearRe    = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)
)

// Config configures an Analyzer.
type Config struct {
	// Synonyms are groups of interchangeable terms, e.g. {"art", "فن"}.
	Synonyms [][]string
	// DefaultLanguage applies when neither script nor locale decide.
	DefaultLanguage string
}

// Analyzer performs query understanding. It is safe for concurrent use.
type Analyzer struct {
	synonyms        map[string][]string
	defaultLanguage string
}

// NewAnalyzer builds an Analyzer, normalizing synonym groups once.
func NewAnalyzer(cfg Config) *Analyzer {
	syn := make(map[string][]string)
	for _, group := range cfg.Synonyms {
		norm := make([]string, 0, len(group))
		for _, w := range group {
			if n := strings.TrimSpace(normalize(w)); n != "" {
				norm = append(norm, n)
			}
		}
		for _, w := range norm {
			for _, other := range norm {
				if other != w {
					syn[w] = append(syn[w], other)
				}
			}
		}
	}

	def := cfg.DefaultLanguage
	if def == "" {
		def = "en"
	}
	return &Analyzer{synonyms: syn, defaultLanguage: def}
}

// Understand analyzes raw in the context of the caller's locale. Input that
// yields no word tokens falls back to whitespace tokenization.
func (a *Analyzer) Understand(raw, locale string) domquery.Query {
	text := normalize(raw)

	entities := extractEntities(text)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		tokens = strings.Fields(text)
	}

	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[t]; !stop {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		terms = append(terms, tokens...)
	}
	terms = dedup(terms)

	return domquery.Query{
		Raw:      raw,
		Terms:    terms,
		Language: a.detectLanguage(text, locale),
		Entities: entities,
		Expanded: a.expand(terms),
		Intent:   classify(tokens, entities),
	}
}

func (a *Analyzer) detectLanguage(text, locale string) string {
	if lang := detectScript(text); lang != "" {
		return lang
	}
	if locale != "" {
		if tag, err := language.Parse(locale); err == nil {
			if base, conf := tag.Base(); conf != language.No {
				return base.String()
			}
		}
	}
	return a.defaultLanguage
}

func (a *Analyzer) expand(terms []string) []string {
	have := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		have[t] = struct{}{}
	}

	var out []string
	add := func(w string) {
		if _, ok := have[w]; ok {
			return
		}
		have[w] = struct{}{}
		out = append(out, w)
	}

	for _, t := range terms {
		forms := []string{t}
		if stem, ok := stripArticle(t); ok {
			add(stem)
			forms = append(forms, stem)
		}
		for _, f := range forms {
			for _, s := range a.synonyms[f] {
				add(s)
			}
		}
	}
	return out
}

func extractEntities(text string) []domquery.Entity {
	var out []domquery.Entity
	for _, m := range phraseRe.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			out = append(out, domquery.Entity{Kind: domquery.EntityPhrase, Value: v})
		}
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		out = append(out, domquery.Entity{Kind: domquery.EntityTopic, Value: m[1]})
	}
	for _, m := range yearRe.FindAllStringSubmatch(text, -1) {
		out = append(out, domquery.Entity{Kind: domquery.EntityYear, Value: m[1]})
	}
	return out
}

func classify(tokens []string, entities []domquery.Entity) domquery.Intent {
	if len(tokens) == 0 {
		return domquery.IntentExplore
	}
	if _, ok := interrogatives[tokens[0]]; ok {
		return domquery.IntentQuestion
	}
	for _, e := range entities {
		if e.Kind == domquery.EntityPhrase {
			return domquery.IntentNavigational
		}
	}
	return domquery.IntentKeyword
}
