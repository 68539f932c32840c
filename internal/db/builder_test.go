package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ContentSchema(t *testing.T) {
	idx, err := NewIndex("discovery:content:idx").
		Prefix("discovery:content:").
		Text("title", 2).
		Text("body", 1).
		Tag("category").
		Tag("language").
		Numeric("popularity").
		VectorHNSW("embedding", 768, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 6 {
		t.Fatalf("fields count = %d, want 6", len(idx.Fields))
	}
	title := idx.Fields[0]
	if title.Type != IndexFieldText || title.TextWeight != 2 || !title.NoStem {
		t.Errorf("title = %+v", title)
	}
	vec := idx.Fields[5]
	if vec.VectorAlgo != VectorHNSW || vec.VectorDim != 768 || vec.VectorDistance != DistanceCosine {
		t.Errorf("vector = %+v", vec)
	}
	if vec.VectorM != 16 || vec.VectorEFConstruct != 200 {
		t.Errorf("hnsw params = %d/%d", vec.VectorM, vec.VectorEFConstruct)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx, err := NewIndex("flat-idx").
		Prefix("emb:").
		VectorFlat("embedding", 1536, DistanceCosine, 1024).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := idx.Fields[0]
	if f.VectorAlgo != VectorFlat || f.VectorBlockSize != 1024 {
		t.Errorf("field = %+v", f)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").VectorHNSW("v", 0, DistanceCosine, 0, 0).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name: "negative text weight",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Text("title", -1).Build()
			},
			wantErr: "non-negative",
		},
		{
			name: "duplicate field",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Tag("x").Numeric("x").Build()
			},
			wantErr: "duplicate field",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("my-idx").
		Prefix("doc:").
		Tag("category").
		VectorHNSW("embedding", 4, DistanceCosine, 0, 0).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	want := "FT.CREATE my-idx ON HASH PREFIX 1 doc: SCHEMA category TAG embedding VECTOR HNSW DIM 4"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
