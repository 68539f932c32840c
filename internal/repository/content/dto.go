package content

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/discovery/internal/db"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
)

// Hash field names. category, language and popularity double as FT index attributes.
const (
	fieldTitle      = "title"
	fieldBody       = "body"
	fieldLanguage   = "language"
	fieldCategory   = "category"
	fieldPopularity = "popularity"
	fieldEmbedding  = "embedding"
	fieldVersion    = "version"
	fieldUpdatedAt  = "updated_at"
)

// buildHashFields converts an Item into a flat map for HSET.
func buildHashFields(it *domcontent.Item) map[string]string {
	return map[string]string{
		fieldTitle:      it.Title(),
		fieldBody:       it.Body(),
		fieldLanguage:   it.Language(),
		fieldCategory:   it.Category(),
		fieldPopularity: strconv.FormatFloat(it.Popularity(), 'f', -1, 64),
		fieldEmbedding:  db.EncodeVector(it.Embedding()),
		fieldVersion:    strconv.FormatInt(it.Version(), 10),
		fieldUpdatedAt:  strconv.FormatInt(it.UpdatedAt().UnixMilli(), 10),
	}
}

// parseHashFields converts a stored hash back into an Item.
func parseHashFields(id string, m map[string]string) (domcontent.Item, error) {
	emb, err := db.DecodeVector(m[fieldEmbedding])
	if err != nil {
		return domcontent.Item{}, fmt.Errorf("item %s: %w", id, err)
	}
	popularity, _ := strconv.ParseFloat(m[fieldPopularity], 64)
	version, _ := strconv.ParseInt(m[fieldVersion], 10, 64)
	updatedMs, _ := strconv.ParseInt(m[fieldUpdatedAt], 10, 64)

	return domcontent.Reconstruct(domcontent.Params{
		ID:         id,
		Title:      m[fieldTitle],
		Body:       m[fieldBody],
		Language:   m[fieldLanguage],
		Category:   m[fieldCategory],
		Popularity: popularity,
		Embedding:  emb,
		Version:    version,
		UpdatedAt:  time.UnixMilli(updatedMs).UTC(),
	}), nil
}
