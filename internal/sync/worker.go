// Package sync rebuilds the search index from the relational store and loads
// tabular exports into it.
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/renderinc/dil/internal/catalog"
	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/metrics"
	"github.com/renderinc/dil/internal/search"
	"github.com/renderinc/dil/internal/storage"
)

const (
	defaultConcurrency = 5
	indexBatchSize     = 500
)

// Worker handles rebuilding the index and importing exports.
type Worker struct {
	db          *storage.DB
	index       *search.Index
	catalog     *catalog.Service
	log         *logger.Logger
	concurrency int
}

// NewWorker creates a new sync worker. catalog may be nil when only
// reindexing is needed.
func NewWorker(log *logger.Logger, db *storage.DB, index *search.Index, catalog *catalog.Service) *Worker {
	return &Worker{
		db:          db,
		index:       index,
		catalog:     catalog,
		log:         log.With("component", "sync"),
		concurrency: defaultConcurrency,
	}
}

// Stats holds reindex statistics
type Stats struct {
	TotalPersons int
	Indexed      uint64
	Duration     time.Duration
}

// Reindex rebuilds the search index from scratch out of every person row.
// It is the recovery path when post-commit index updates were lost.
func (w *Worker) Reindex(ctx context.Context) (*Stats, error) {
	start := time.Now()
	w.log.Info("reindex started")

	sources, err := w.db.IndexSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persons: %w", err)
	}

	// Markup stripping dominates; spread it over a few goroutines.
	docs := make([]*search.IndexedDocument, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = search.BuildDocument(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := w.index.Rebuild(ctx, docs, indexBatchSize); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}
	count, err := w.index.Count()
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}

	stats := &Stats{TotalPersons: len(sources), Indexed: count, Duration: time.Since(start)}
	metrics.ReindexDuration.Observe(stats.Duration.Seconds())
	w.log.Info("reindex complete",
		"persons", stats.TotalPersons,
		"indexed", stats.Indexed,
		"duration", stats.Duration,
	)
	return stats, nil
}
