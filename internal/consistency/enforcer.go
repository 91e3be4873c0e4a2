// Package consistency runs the rules that keep rows, identifiers, image
// files and the search index in agreement around every mutation.
//
// Hooks run in two phases. Before hooks execute inside the write transaction
// and may abort it; after hooks execute once the transaction has committed
// and can only log. Each hook dispatches on the entity kind carried by the
// Mutation.
package consistency

import (
	"context"
	"fmt"

	"github.com/renderinc/dil/internal/ident"
	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/metrics"
	"github.com/renderinc/dil/internal/storage"
)

// Op is the kind of write being performed.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is one write travelling through the hooks. Entity is the row as
// it will be written (insert, update) or as it was before removal (delete).
type Mutation struct {
	Op       Op
	Entity   storage.Entity
	// Previous is the stored row an update replaces. Nil otherwise.
	Previous storage.Entity

	undo []func() error
}

// NewMutation wraps e for a write of kind op.
func NewMutation(op Op, e storage.Entity) *Mutation {
	return &Mutation{Op: op, Entity: e}
}

// OnAbort registers fn to revert a side effect outside the database if the
// transaction does not commit.
func (m *Mutation) OnAbort(fn func() error) {
	m.undo = append(m.undo, fn)
}

// Abort runs the registered reverts, newest first, and returns their errors.
func (m *Mutation) Abort() []error {
	var errs []error
	for i := len(m.undo) - 1; i >= 0; i-- {
		if err := m.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.undo = nil
	return errs
}

// Policy decides what a hook failure does to the mutation.
type Policy int

const (
	// Fatal failures abort the transaction and reach the caller.
	Fatal Policy = iota
	// BestEffort failures are logged, counted and otherwise ignored.
	BestEffort
)

// Outcome records a suppressed best-effort failure.
type Outcome struct {
	Hook string
	Err  error
}

type beforeHook struct {
	name   string
	policy Policy
	run    func(ctx context.Context, tx *storage.Tx, m *Mutation) error
}

type afterHook struct {
	name string
	run  func(ctx context.Context, m *Mutation) error
}

// Indexer keeps person documents in the search index.
// Indexer is the part of the search index the hooks keep in sync.
type Indexer interface {
	IndexPerson(src *storage.IndexSource) error
	Delete(idDil string) error
}

// SourceLoader reads the committed text of a person for indexing.
type SourceLoader interface {
	IndexSourceByID(ctx context.Context, personID int64) (*storage.IndexSource, error)
}

// FileStore holds the image files.
type FileStore interface {
	Rename(oldName, newName string) error
	Remove(name string) error
}

// Enforcer holds the ordered hooks run around every write.
type Enforcer struct {
	log *logger.Logger
	ids *ident.Generator

	index  Indexer
	source SourceLoader
	files  FileStore

	before []beforeHook
	after  []afterHook
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithIndex enables search index synchronisation after commits.
func WithIndex(index Indexer, source SourceLoader) Option {
	return func(e *Enforcer) {
		e.index = index
		e.source = source
	}
}

// WithImageStore enables image file renaming and removal.
func WithImageStore(files FileStore) Option {
	return func(e *Enforcer) {
		e.files = files
	}
}

// New builds the enforcer with its hooks in execution order.
func New(log *logger.Logger, ids *ident.Generator, opts ...Option) *Enforcer {
	e := &Enforcer{log: log.With("component", "consistency"), ids: ids}
	for _, opt := range opts {
		opt(e)
	}

	e.before = []beforeHook{
		{name: "markup", policy: BestEffort, run: fixMarkup},
		{name: "validate", policy: Fatal, run: validate},
		{name: "references", policy: Fatal, run: checkReferences},
	}
	if e.files != nil {
		e.before = append(e.before, beforeHook{name: "image_name", policy: Fatal, run: e.nameImageFile})
	}
	e.before = append(e.before,
		beforeHook{name: "assign_id", policy: Fatal, run: e.assignID},
		beforeHook{name: "single_pin", policy: Fatal, run: enforceSinglePin},
	)

	if e.index != nil {
		e.after = append(e.after, afterHook{name: "index_sync", run: e.syncIndex})
	}
	if e.files != nil {
		e.after = append(e.after, afterHook{name: "image_file", run: e.removeImageFile})
	}
	return e
}

// BeforeCommit runs the in-transaction hooks. The first fatal failure is
// returned and the caller must roll back.
func (e *Enforcer) BeforeCommit(ctx context.Context, tx *storage.Tx, m *Mutation) ([]Outcome, error) {
	var outcomes []Outcome
	for _, h := range e.before {
		if h.policy == Fatal {
			if err := h.run(ctx, tx, m); err != nil {
				return outcomes, err
			}
			continue
		}
		err := guard(h.name, func() error { return h.run(ctx, tx, m) })
		if err != nil {
			outcomes = append(outcomes, e.suppress(h.name, m, err))
		}
	}
	return outcomes, nil
}

// AfterCommit runs the post-commit hooks. Failures never propagate.
func (e *Enforcer) AfterCommit(ctx context.Context, m *Mutation) []Outcome {
	var outcomes []Outcome
	for _, h := range e.after {
		err := guard(h.name, func() error { return h.run(ctx, m) })
		if err != nil {
			outcomes = append(outcomes, e.suppress(h.name, m, err))
		}
	}
	return outcomes
}

func (e *Enforcer) suppress(hook string, m *Mutation, err error) Outcome {
	e.log.Warn("best-effort hook failed",
		"hook", hook,
		"op", m.Op.String(),
		"kind", m.Entity.Kind().String(),
		"id", m.Entity.Base().IDDil,
		"error", err,
	)
	metrics.HookFailures.WithLabelValues(hook).Inc()
	return Outcome{Hook: hook, Err: err}
}

// guard turns a panic in a best-effort hook into an error.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", name, r)
		}
	}()
	return fn()
}
