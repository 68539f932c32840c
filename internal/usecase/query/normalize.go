package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize repairs invalid UTF-8, applies NFKC, folds case and removes
// Arabic orthographic variation.
func normalize(s string) string {
	s = strings.ToValidUTF8(s, " ")
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s) // Casers are stateful: one per call
	return normalizeArabic(s)
}

// normalizeArabic strips tashkeel and tatweel and unifies alef and
// alef maqsura forms.
func normalizeArabic(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'ً' && r <= 'ْ', r == 'ٰ', r == 'ـ':
			continue
		case r == 'أ', r == 'إ', r == 'آ', r == 'ٱ':
			b.WriteRune('ا')
		case r == 'ى':
			b.WriteRune('ي')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// detectScript counts Arabic and Latin letters and reports the majority
// language, or "" on a tie.
func detectScript(s string) string {
	var arabic, latin int
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Arabic, r) && unicode.IsLetter(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case arabic > latin:
		return "ar"
	case latin > arabic:
		return "en"
	default:
		return ""
	}
}

// stripArticle removes the Arabic definite article when a stem of at least
// two letters remains.
func stripArticle(term string) (string, bool) {
	const article = "ال"
	if !strings.HasPrefix(term, article) {
		return "", false
	}
	stem := strings.TrimPrefix(term, article)
	if len([]rune(stem)) < 2 {
		return "", false
	}
	return stem, true
}

func dedup(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
