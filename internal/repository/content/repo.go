// Package content stores content items as hashes indexed for keyword and
// vector retrieval.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// KeyPrefix is the hash key prefix of content items.
const KeyPrefix = domain.KeyPrefix + "content:"

// IndexName is the FT index over content items.
const IndexName = KeyPrefix + "idx"

// fetchChunk bounds one HGETALL pipeline.
const fetchChunk = 256

// store is the consumer interface for content persistence (ISP).
type store interface {
	HSetIfNewer(ctx context.Context, key, versionField string, version int64, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements content item persistence.
type Repo struct {
	store store
}

// New creates a content repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert writes the item unless the stored version is the same or newer,
// in which case domain.ErrStaleVersion is returned.
func (r *Repo) Upsert(ctx context.Context, it *domcontent.Item) error {
	written, err := r.store.HSetIfNewer(ctx, itemKey(it.ID()), fieldVersion, it.Version(), buildHashFields(it))
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", it.ID(), err)
	}
	if !written {
		return fmt.Errorf("item %s version %d: %w", it.ID(), it.Version(), domain.ErrStaleVersion)
	}
	return nil
}

// Get loads one item.
func (r *Repo) Get(ctx context.Context, id string) (domcontent.Item, error) {
	m, err := r.store.HGetAll(ctx, itemKey(id))
	if err != nil {
		return domcontent.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	if len(m) == 0 {
		return domcontent.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return parseHashFields(id, m)
}

// GetMany loads items by id. Missing ids are absent from the result.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]domcontent.Item, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKey(id)
	}
	return r.fetch(ctx, keys, filter.Filters{})
}

// ListFiltered loads every item matching f by scanning the keyspace.
// Cost is linear in catalogue size; it backs retrieval when the index cannot
// pre-filter a KNN query.
func (r *Repo) ListFiltered(ctx context.Context, f filter.Filters) ([]domcontent.Item, error) {
	keys, err := r.store.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}

	itemKeys := keys[:0]
	for _, k := range keys {
		if k != IndexName {
			itemKeys = append(itemKeys, k)
		}
	}

	byID, err := r.fetch(ctx, itemKeys, f)
	if err != nil {
		return nil, err
	}
	out := make([]domcontent.Item, 0, len(byID))
	for _, it := range byID {
		out = append(out, it)
	}
	return out, nil
}

func (r *Repo) fetch(ctx context.Context, keys []string, f filter.Filters) (map[string]domcontent.Item, error) {
	out := make(map[string]domcontent.Item, len(keys))
	for start := 0; start < len(keys); start += fetchChunk {
		end := min(start+fetchChunk, len(keys))
		chunk := keys[start:end]

		maps, err := r.store.HGetAllMulti(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("fetch items: %w", err)
		}
		for i, m := range maps {
			if len(m) == 0 {
				continue // deleted between SCAN and HGETALL
			}
			id := strings.TrimPrefix(chunk[i], KeyPrefix)
			it, err := parseHashFields(id, m)
			if err != nil {
				return nil, err
			}
			if f.Matches(it.Category(), it.Language(), it.Popularity()) {
				out[id] = it
			}
		}
	}
	return out, nil
}

// IndexOptions shapes the content index.
type IndexOptions struct {
	Dimensions     int
	Algorithm      db.VectorAlgorithm
	M              int
	EFConstruction int
	TitleWeight    float64
}

// EnsureIndex creates the content FT index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context, opts IndexOptions) (created bool, err error) {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	if exists {
		return false, nil
	}

	b := db.NewIndex(IndexName).
		Prefix(KeyPrefix).
		Text(fieldTitle, opts.TitleWeight).
		Text(fieldBody, 1).
		Tag(filter.FieldCategory).
		Tag(filter.FieldLanguage).
		Numeric(filter.FieldPopularity)
	if opts.Algorithm == db.VectorFlat {
		b = b.VectorFlat(fieldEmbedding, opts.Dimensions, db.DistanceCosine, 0)
	} else {
		b = b.VectorHNSW(fieldEmbedding, opts.Dimensions, db.DistanceCosine, opts.M, opts.EFConstruction)
	}
	def, err := b.Build()
	if err != nil {
		return false, fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index: %w", err)
	}
	return true, nil
}

// VectorField is the indexed embedding attribute.
func VectorField() string { return fieldEmbedding }

// TextFields are the indexed BM25 attributes.
func TextFields() []string { return []string{fieldTitle, fieldBody} }

// IDFromKey strips the key prefix from a hash key.
func IDFromKey(key string) string { return strings.TrimPrefix(key, KeyPrefix) }

func itemKey(id string) string { return KeyPrefix + id }
