package content

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/discovery/internal/domain"
)

var (
	idRegex       = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	slugRegex     = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	languageRegex = regexp.MustCompile(`^[a-z]{2,3}$`)
)

// Field limits.
const (
	MaxIDLength    = 256
	MaxTitleLength = 1024
	MaxBodyLength  = 163840 // 160KB
)

// Item is a content item as supplied by the content-intelligence pipeline (immutable value object).
type Item struct {
	id         string
	title      string
	body       string
	language   string
	category   string
	popularity float64
	embedding  []float32
	version    int64
	updatedAt  time.Time
}

// Params carries the raw fields for New.
type Params struct {
	ID         string
	Title      string
	Body       string
	Language   string
	Category   string
	Popularity float64
	Embedding  []float32
	Version    int64
	UpdatedAt  time.Time
}

// New validates and creates an Item. dims is the embedding dimensionality of the
// current index generation.
func New(p Params, dims int) (Item, error) {
	if p.ID == "" || len(p.ID) > MaxIDLength || !idRegex.MatchString(p.ID) {
		return Item{}, fmt.Errorf("%w: id must match %s (1-%d chars)", domain.ErrInvalidContent, idRegex, MaxIDLength)
	}
	if p.Title == "" && p.Body == "" {
		return Item{}, fmt.Errorf("%w: title or body is required", domain.ErrInvalidContent)
	}
	if len(p.Title) > MaxTitleLength {
		return Item{}, fmt.Errorf("%w: title too long (max %d)", domain.ErrInvalidContent, MaxTitleLength)
	}
	if len(p.Body) > MaxBodyLength {
		return Item{}, fmt.Errorf("%w: body too large (max %d bytes)", domain.ErrInvalidContent, MaxBodyLength)
	}
	if !languageRegex.MatchString(p.Language) {
		return Item{}, fmt.Errorf("%w: language must be an ISO 639 code, got %q", domain.ErrInvalidContent, p.Language)
	}
	if !slugRegex.MatchString(p.Category) {
		return Item{}, fmt.Errorf("%w: category must be a lowercase slug, got %q", domain.ErrInvalidContent, p.Category)
	}
	if p.Popularity < 0 {
		return Item{}, fmt.Errorf("%w: popularity must be non-negative", domain.ErrInvalidContent)
	}
	if p.Version <= 0 {
		return Item{}, fmt.Errorf("%w: version must be positive", domain.ErrInvalidContent)
	}
	if len(p.Embedding) != dims {
		return Item{}, fmt.Errorf("%w: expected %d, got %d", domain.ErrVectorDimMismatch, dims, len(p.Embedding))
	}

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	emb := make([]float32, len(p.Embedding))
	copy(emb, p.Embedding)

	return Item{
		id:         p.ID,
		title:      p.Title,
		body:       p.Body,
		language:   p.Language,
		category:   p.Category,
		popularity: p.Popularity,
		embedding:  emb,
		version:    p.Version,
		updatedAt:  updatedAt,
	}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(p Params) Item {
	return Item{
		id:         p.ID,
		title:      p.Title,
		body:       p.Body,
		language:   p.Language,
		category:   p.Category,
		popularity: p.Popularity,
		embedding:  p.Embedding,
		version:    p.Version,
		updatedAt:  p.UpdatedAt,
	}
}

// ID returns the content identifier.
func (i *Item) ID() string { return i.id }

// Title returns the title text.
func (i *Item) Title() string { return i.title }

// Body returns the body text.
func (i *Item) Body() string { return i.body }

// Language returns the ISO 639 language code.
func (i *Item) Language() string { return i.language }

// Category returns the category slug.
func (i *Item) Category() string { return i.category }

// Popularity returns the raw popularity score.
func (i *Item) Popularity() float64 { return i.popularity }

// Embedding returns the content embedding.
func (i *Item) Embedding() []float32 { return i.embedding }

// Version returns the publisher's version stamp.
func (i *Item) Version() int64 { return i.version }

// UpdatedAt returns when the version was produced.
func (i *Item) UpdatedAt() time.Time { return i.updatedAt }
