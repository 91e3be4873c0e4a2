// Package catalog is the write path for every record. Each call runs in one
// transaction with the consistency hooks around the write.
package catalog

import (
	"context"
	"fmt"

	"github.com/renderinc/dil/internal/consistency"
	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/storage"
)

// Service applies creates, updates and deletes through the consistency hooks.
type Service struct {
	db       *storage.DB
	enforcer *consistency.Enforcer
	log      *logger.Logger
}

// New creates a catalog service writing to db.
func New(log *logger.Logger, db *storage.DB, enforcer *consistency.Enforcer) *Service {
	return &Service{db: db, enforcer: enforcer, log: log.With("component", "catalog")}
}

// Create inserts e. Missing identifiers are generated and e is updated with
// its keys.
func (s *Service) Create(ctx context.Context, e storage.Entity) error {
	return s.run(ctx, consistency.OpInsert, func(*storage.Tx) (storage.Entity, storage.Entity, error) {
		return e, nil, nil
	})
}

// Update rewrites the row identified by e's public identifier.
func (s *Service) Update(ctx context.Context, e storage.Entity) error {
	return s.run(ctx, consistency.OpUpdate, func(tx *storage.Tx) (storage.Entity, storage.Entity, error) {
		current, err := tx.Get(ctx, e.Kind(), e.Base().IDDil)
		if err != nil {
			return nil, nil, err
		}
		rec := e.Base()
		rec.ID = current.Base().ID
		rec.CreatedAt = current.Base().CreatedAt
		return e, current, nil
	})
}

// Delete removes the row of kind k with public identifier idDil.
func (s *Service) Delete(ctx context.Context, k storage.Kind, idDil string) error {
	return s.run(ctx, consistency.OpDelete, func(tx *storage.Tx) (storage.Entity, storage.Entity, error) {
		e, err := tx.Get(ctx, k, idDil)
		return e, nil, err
	})
}

// SetPinned pins or unpins an image link. Pinning unpins every other image
// of the same patent.
func (s *Service) SetPinned(ctx context.Context, linkIDDil string, pinned bool) error {
	return s.run(ctx, consistency.OpUpdate, func(tx *storage.Tx) (storage.Entity, storage.Entity, error) {
		e, err := tx.Get(ctx, storage.KindPatentImage, linkIDDil)
		if err != nil {
			return nil, nil, err
		}
		e.(*storage.PatentImage).IsPinned = pinned
		return e, nil, nil
	})
}

// run executes one mutation: load, before hooks, write, commit, after hooks.
// load returns the row to write and, for updates, the stored row it replaces.
// Side effects registered by hooks are reverted when the transaction does not
// commit.
func (s *Service) run(ctx context.Context, op consistency.Op, load func(*storage.Tx) (storage.Entity, storage.Entity, error)) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}

	var m *consistency.Mutation
	defer func() {
		if err == nil {
			return
		}
		_ = tx.Rollback()
		if m == nil {
			return
		}
		for _, uerr := range m.Abort() {
			s.log.Error("revert side effect", "kind", m.Entity.Kind().String(), "error", uerr)
		}
	}()

	e, previous, err := load(tx)
	if err != nil {
		return err
	}
	m = consistency.NewMutation(op, e)
	m.Previous = previous

	if _, err = s.enforcer.BeforeCommit(ctx, tx, m); err != nil {
		return err
	}

	switch op {
	case consistency.OpInsert:
		err = tx.Insert(ctx, e)
	case consistency.OpUpdate:
		err = tx.Update(ctx, e)
	case consistency.OpDelete:
		err = tx.Delete(ctx, e)
	}
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %s: %w", op, e.Kind(), err)
	}

	s.log.Debug("mutation committed", "op", op.String(), "kind", e.Kind().String(), "id", e.Base().IDDil)
	s.enforcer.AfterCommit(ctx, m)
	return nil
}
