package query

// Stop words are matched after normalization, so Arabic entries are
// written without hamza-on-alef.
var stopWords = setOf(
	// en
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "in", "into",
	"is", "it", "of", "on", "or", "that", "the", "to", "was", "with", "what",
	"who", "where", "when", "why", "how", "which", "do", "does", "can", "about",
	"me", "my", "i", "you", "your", "this", "these", "those", "show", "find",
	// ar
	"في", "من", "الي", "علي", "عن", "مع", "هذا", "هذه", "ذلك", "تلك", "التي",
	"الذي", "و", "او", "ثم", "ان", "كان", "هل", "ما", "ماذا", "كيف", "متي",
	"اين", "لماذا", "اي", "كل", "بعض", "هو", "هي", "انا", "نحن", "لي",
)

// interrogatives mark a question when they lead the query.
var interrogatives = setOf(
	"what", "who", "where", "when", "why", "how", "which", "is", "are", "can",
	"does", "do", "should",
	"ما", "ماذا", "من", "اين", "متي", "لماذا", "كيف", "هل", "كم", "اي",
)

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[normalize(w)] = struct{}{}
	}
	return m
}
