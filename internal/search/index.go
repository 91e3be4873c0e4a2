package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/renderinc/dil/internal/storage"
	"github.com/renderinc/dil/internal/textnorm"
)

// highlightSeparator joins the fragments of a multi-fragment highlight.
const highlightSeparator = "..."

// reader is the read side of a bleve index.
type reader interface {
	SearchInContext(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error)
	DocCount() (uint64, error)
}

// Index wraps a Bleve search index of persons.
type Index struct {
	path string

	// writeMu serialises writers; swapMu guards the index handle, which
	// Rebuild replaces.
	writeMu sync.Mutex
	swapMu  sync.RWMutex
	index   bleve.Index
	reader  reader
}

// Hit is a matched person. Highlight holds HTML fragments of the content
// field, or "" when only the name matched.
type Hit struct {
	Score     float64
	Highlight string
}

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Index{path: path, index: idx, reader: idx}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return idx, nil
}

func create(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build mapping: %w", err)
	}
	idx, err := bleve.New(path, indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return idx, nil
}

// Close closes the index
func (i *Index) Close() error {
	i.swapMu.Lock()
	defer i.swapMu.Unlock()
	return i.index.Close()
}

// Upsert stores doc under its identifier. Bleve replaces any previous
// document with that identifier in the same segment write, so readers never
// see two versions or a gap.
func (i *Index) Upsert(doc *IndexedDocument) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	i.swapMu.RLock()
	defer i.swapMu.RUnlock()

	if err := i.index.Index(doc.IDDil, doc); err != nil {
		return fmt.Errorf("index %s: %w", doc.IDDil, err)
	}
	return nil
}

// IndexPerson regenerates the document of one person.
func (i *Index) IndexPerson(src *storage.IndexSource) error {
	return i.Upsert(BuildDocument(src))
}

// Delete removes a document from the index. Deleting an absent identifier is
// not an error.
func (i *Index) Delete(id string) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	i.swapMu.RLock()
	defer i.swapMu.RUnlock()

	if err := i.index.Delete(id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Rebuild replaces the whole index with docs. The new index is built next to
// the live one and swapped in once complete, so searches keep working
// meanwhile.
func (i *Index) Rebuild(ctx context.Context, docs []*IndexedDocument, batchSize int) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	if batchSize <= 0 {
		batchSize = 500
	}
	tmp := i.path + ".rebuild"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear %s: %w", tmp, err)
	}
	fresh, err := create(tmp)
	if err != nil {
		return err
	}

	batch := fresh.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			fresh.Close()
			return err
		}
		if err := batch.Index(doc.IDDil, doc); err != nil {
			fresh.Close()
			return fmt.Errorf("batch index %s: %w", doc.IDDil, err)
		}
		if batch.Size() >= batchSize {
			if err := fresh.Batch(batch); err != nil {
				fresh.Close()
				return fmt.Errorf("commit batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := fresh.Batch(batch); err != nil {
			fresh.Close()
			return fmt.Errorf("commit batch: %w", err)
		}
	}
	if err := fresh.Close(); err != nil {
		return fmt.Errorf("close rebuilt index: %w", err)
	}

	i.swapMu.Lock()
	defer i.swapMu.Unlock()
	if err := i.index.Close(); err != nil {
		return fmt.Errorf("close live index: %w", err)
	}
	if err := os.RemoveAll(i.path); err != nil {
		return fmt.Errorf("remove live index: %w", err)
	}
	if err := os.Rename(tmp, i.path); err != nil {
		return fmt.Errorf("swap index: %w", err)
	}
	idx, err := bleve.Open(i.path)
	if err != nil {
		return fmt.Errorf("reopen index: %w", err)
	}
	i.index, i.reader = idx, idx
	return nil
}

// Search finds persons matching both the name query and the content query;
// an empty query places no constraint. When both are empty it returns an
// empty result without touching the index. limit <= 0 means no limit.
func (i *Index) Search(ctx context.Context, nameQuery, contentQuery string, limit int) (map[string]Hit, error) {
	name := textnorm.FoldQuery(nameQuery)
	content := textnorm.StripLeadingWildcard(contentQuery)
	if name == "" && content == "" {
		return map[string]Hit{}, nil
	}
	q := buildQuery(name, content)
	if q == nil {
		return map[string]Hit{}, nil
	}

	i.swapMu.RLock()
	defer i.swapMu.RUnlock()

	if limit <= 0 {
		n, err := i.reader.DocCount()
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		if n == 0 {
			return map[string]Hit{}, nil
		}
		limit = int(n)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	if content != "" {
		req.Highlight = bleve.NewHighlightWithStyle("html")
		req.Highlight.AddField(fieldContent)
	}

	res, err := i.reader.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make(map[string]Hit, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = Hit{
			Score:     h.Score,
			Highlight: strings.Join(h.Fragments[fieldContent], highlightSeparator),
		}
	}
	return hits, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	i.swapMu.RLock()
	defer i.swapMu.RUnlock()
	return i.reader.DocCount()
}
