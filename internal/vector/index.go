package vector

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "sentinel_memory"

// EmbedFunc turns text into an embedding vector. Supplied by the caller so
// the index itself stays ignorant of providers.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Hit is one similarity-search result.
type Hit struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float32
}

// Doc is one stored record, as returned by point lookups.
type Doc struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Index wraps an embedded chromem-go collection. Embeddings are computed via
// the configured EmbedFunc once at write time and for each query text.
type Index struct {
	db  *chromem.DB
	col *chromem.Collection
}

// Open opens the persistent vector index rooted at dir, creating the
// collection if needed. An empty dir opens an in-memory index (tests).
func Open(dir string, embed EmbedFunc) (*Index, error) {
	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &Index{db: db, col: col}, nil
}

// Add stores one record. Re-adding an existing ID overwrites it (last write
// wins). The embedding is computed from text via the collection's EmbedFunc.
func (i *Index) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	err := i.col.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query embeds text and returns up to k nearest records by cosine
// similarity. An empty index yields a nil slice, not an error.
func (i *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	count := i.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := i.col.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, Hit{
			ID:         res.ID,
			Text:       res.Content,
			Metadata:   res.Metadata,
			Similarity: res.Similarity,
		})
	}
	return hits, nil
}

// Get returns the stored record for id, reporting whether it exists.
func (i *Index) Get(ctx context.Context, id string) (Doc, bool) {
	doc, err := i.col.GetByID(ctx, id)
	if err != nil {
		return Doc{}, false
	}
	return Doc{ID: doc.ID, Text: doc.Content, Metadata: doc.Metadata}, true
}

// DeleteIDs removes the given records. Unknown IDs are ignored.
func (i *Index) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := i.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (i *Index) Count() int {
	return i.col.Count()
}
