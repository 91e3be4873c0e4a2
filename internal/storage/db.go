package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/renderinc/dil/internal/dilerr"
	"github.com/renderinc/dil/internal/textnorm"
)

const driverName = "sqlite3_dil"

// The driver exposes the folding and date helpers to SQL so sorting and
// period filtering happen inside the query.
func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("dil_fold", textnorm.Fold, true); err != nil {
				return err
			}
			if err := conn.RegisterFunc("dil_date_lo", textnorm.PeriodStart, true); err != nil {
				return err
			}
			return conn.RegisterFunc("dil_date_hi", textnorm.PeriodEnd, true)
		},
	})
}

// DB wraps SQLite database operations
type DB struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates a SQLite database
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them. Writes take
	// the lock at BEGIN, which serialises read-modify-write sequences.
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	db, err := sql.Open(driverName, "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storage := &DB{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	_, err := d.db.Exec(schema)
	return err
}

const versioned = `
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		last_editor TEXT DEFAULT 'admin'`

var schema = `
	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		country_iso_code TEXT NOT NULL DEFAULT 'FR',
		long_lat TEXT,
		insee_fr_code TEXT,
		insee_fr_department_code TEXT DEFAULT 'DEP_00',
		insee_fr_department_label TEXT,
		geoname_id TEXT,
		wikidata_item_id TEXT,
		dicotopo_item_id TEXT,
		databnf_ark TEXT,
		viaf_id TEXT,
		siaf_id TEXT,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		lastname TEXT NOT NULL,
		firstnames TEXT,
		birth_date TEXT,
		birth_city_label TEXT,
		birth_city_id INTEGER REFERENCES cities(id) ON DELETE SET NULL,
		personal_information TEXT,
		professional_information TEXT,
		comment TEXT,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS patents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		city_label TEXT,
		city_id INTEGER REFERENCES cities(id) ON DELETE SET NULL,
		date_start TEXT,
		date_end TEXT,
		"references" TEXT,
		comment TEXT,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL DEFAULT 'inconnue',
		city_label TEXT,
		city_id INTEGER REFERENCES cities(id) ON DELETE SET NULL,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		reference_url TEXT NOT NULL DEFAULT 'unknown_url',
		img_name TEXT DEFAULT 'unknown.jpg',
		iiif_url TEXT,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS patent_has_relations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
		person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		person_related_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		type TEXT NOT NULL,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS patent_has_addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
		address_id INTEGER NOT NULL REFERENCES addresses(id) ON DELETE CASCADE,
		date_occupation TEXT,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS person_has_addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		address_id INTEGER NOT NULL REFERENCES addresses(id) ON DELETE CASCADE,
		date_occupation TEXT,
		comment TEXT,` + versioned + `
	);

	CREATE TABLE IF NOT EXISTS patent_has_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_id_dil TEXT NOT NULL UNIQUE,
		patent_id INTEGER NOT NULL REFERENCES patents(id) ON DELETE CASCADE,
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		is_pinned INTEGER NOT NULL DEFAULT 0,` + versioned + `
	);

	CREATE INDEX IF NOT EXISTS idx_patents_person ON patents(person_id);
	CREATE INDEX IF NOT EXISTS idx_patents_city ON patents(city_id);
	CREATE INDEX IF NOT EXISTS idx_patents_start ON patents(date_start);
	CREATE INDEX IF NOT EXISTS idx_relations_patent ON patent_has_relations(patent_id);
	CREATE INDEX IF NOT EXISTS idx_patent_addresses_patent ON patent_has_addresses(patent_id);
	CREATE INDEX IF NOT EXISTS idx_person_addresses_person ON person_has_addresses(person_id);
	CREATE INDEX IF NOT EXISTS idx_patent_images_patent ON patent_has_images(patent_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_patent_images_one_pinned
		ON patent_has_images(patent_id) WHERE is_pinned = 1;
	`

// Begin starts a write transaction.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Count returns the number of rows of kind k.
func (d *DB) Count(ctx context.Context, k Kind) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+k.Table()).Scan(&n)
	return n, err
}

// Get loads a row of kind k by its public identifier.
func (d *DB) Get(ctx context.Context, k Kind, idDil string) (Entity, error) {
	return getEntity(ctx, d.db, k, idDil)
}

// classify turns driver constraint failures into integrity errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w", dilerr.ErrIntegrity, err)
	}
	return err
}

func notFound(err error, k Kind, key any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return dilerr.NotFound("%s %v", k, key)
	}
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func now() time.Time {
	return time.Now().UTC()
}
