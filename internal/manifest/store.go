// Package manifest provides the versioned baseline manifest and the append-only
// audit log of comparison results.
package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/pdf-fidelity/internal/config"
	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/retry"
)

// Common errors
var (
	ErrNotFound = errors.New("manifest entry not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store persists manifest entries and audit records
type Store struct {
	db *sql.DB
}

// Open connects to the configured database and applies the schema
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		db, err = sql.Open("sqlite3", sqliteDSN(cfg.SQLite))
		if err == nil {
			conns := cfg.SQLite.MaxOpenConns
			if conns < 1 || cfg.SQLite.Path == ":memory:" {
				conns = 1
			}
			db.SetMaxOpenConns(conns)
		}
	case "postgres":
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err == nil {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest database: %w", err)
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), nil, "manifest ping", db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect manifest database: %w", err)
	}

	store := NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func sqliteDSN(cfg config.SQLiteConfig) string {
	if cfg.Path == ":memory:" {
		return ":memory:"
	}
	mode := cfg.JournalMode
	if mode == "" {
		mode = "WAL"
	}
	return fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=5000&_foreign_keys=on", cfg.Path, mode)
}

// NewStore wraps an open database. Call Migrate before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply manifest schema: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores entry as the next version for its key. ID, Version and CreatedAt
// are assigned here.
func (s *Store) Put(ctx context.Context, entry *Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manifest transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	query := `
		SELECT COALESCE(MAX(version), 0) FROM manifests
		WHERE document_id = $1 AND engine_name = $2 AND engine_version = $3 AND engine_checksum = $4
	`
	err = tx.QueryRowContext(ctx, query,
		entry.DocumentID, entry.Engine.Name, entry.Engine.Version, entry.Engine.Checksum,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("read manifest version: %w", err)
	}

	entry.ID = uuid.New()
	entry.Version = current + 1
	entry.CreatedAt = time.Now().UTC()

	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return err
	}
	pageErrors, err := json.Marshal(entry.PageErrors)
	if err != nil {
		return err
	}

	query = `
		INSERT INTO manifests (id, document_id, engine_name, engine_version, engine_checksum, version,
			document_checksum, page_count, tags, text_path, text_hash, text_size,
			metadata_path, metadata_hash, metadata_size, metadata_scope, page_errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = tx.ExecContext(ctx, query,
		entry.ID.String(), entry.DocumentID, entry.Engine.Name, entry.Engine.Version, entry.Engine.Checksum,
		entry.Version, entry.DocumentChecksum, entry.PageCount, string(tags),
		entry.TextPath, entry.TextHash, entry.TextSize,
		entry.MetadataPath, entry.MetadataHash, entry.MetadataSize, string(entry.MetadataScope),
		string(pageErrors), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert manifest: %w", err)
	}

	for _, img := range entry.Images {
		query := `
			INSERT INTO manifest_images (manifest_id, page, encoding, hash, size, width, height)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err := tx.ExecContext(ctx, query,
			entry.ID.String(), img.Page, string(img.Kind), img.Hash, img.Size, img.Width, img.Height,
		)
		if err != nil {
			return fmt.Errorf("insert manifest image: %w", err)
		}
	}

	return tx.Commit()
}

const entryColumns = `id, document_id, engine_name, engine_version, engine_checksum, version,
	document_checksum, page_count, tags, text_path, text_hash, text_size,
	metadata_path, metadata_hash, metadata_size, metadata_scope, page_errors, created_at`

// Latest returns the newest version for the document and engine
func (s *Store) Latest(ctx context.Context, documentID string, engine domain.EngineIdentity) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM manifests
		WHERE document_id = $1 AND engine_name = $2 AND engine_version = $3 AND engine_checksum = $4
		ORDER BY version DESC LIMIT 1`
	return s.getOne(ctx, query, documentID, engine.Name, engine.Version, engine.Checksum)
}

// Get returns a specific version
func (s *Store) Get(ctx context.Context, documentID string, engine domain.EngineIdentity, version int) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM manifests
		WHERE document_id = $1 AND engine_name = $2 AND engine_version = $3 AND engine_checksum = $4 AND version = $5`
	return s.getOne(ctx, query, documentID, engine.Name, engine.Version, engine.Checksum, version)
}

// Versions lists stored versions for the key in ascending order
func (s *Store) Versions(ctx context.Context, documentID string, engine domain.EngineIdentity) ([]int, error) {
	query := `
		SELECT version FROM manifests
		WHERE document_id = $1 AND engine_name = $2 AND engine_version = $3 AND engine_checksum = $4
		ORDER BY version
	`
	rows, err := s.db.QueryContext(ctx, query, documentID, engine.Name, engine.Version, engine.Checksum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// List returns the latest entry of every document for the engine, ordered by
// document id
func (s *Store) List(ctx context.Context, engine domain.EngineIdentity) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM manifests
		WHERE engine_name = $1 AND engine_version = $2 AND engine_checksum = $3
		ORDER BY document_id, version DESC`
	rows, err := s.db.QueryContext(ctx, query, engine.Name, engine.Version, engine.Checksum)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	seen := make(map[string]bool)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if seen[e.DocumentID] {
			continue
		}
		seen[e.DocumentID] = true
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, e := range entries {
		if err := loadImages(ctx, s.db, e); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Store) getOne(ctx context.Context, query string, args ...interface{}) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadImages(ctx, s.db, e); err != nil {
		return nil, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	var id, tags, pageErrors, scope string
	err := row.Scan(
		&id, &e.DocumentID, &e.Engine.Name, &e.Engine.Version, &e.Engine.Checksum, &e.Version,
		&e.DocumentChecksum, &e.PageCount, &tags, &e.TextPath, &e.TextHash, &e.TextSize,
		&e.MetadataPath, &e.MetadataHash, &e.MetadataSize, &scope, &pageErrors, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse manifest id: %w", err)
	}
	e.MetadataScope = domain.MetadataScope(scope)
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("parse manifest tags: %w", err)
	}
	if err := json.Unmarshal([]byte(pageErrors), &e.PageErrors); err != nil {
		return nil, fmt.Errorf("parse manifest page errors: %w", err)
	}
	return e, nil
}

func loadImages(ctx context.Context, db DB, e *Entry) error {
	query := `
		SELECT page, encoding, hash, size, width, height
		FROM manifest_images WHERE manifest_id = $1
	`
	rows, err := db.QueryContext(ctx, query, e.ID.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	e.Images = nil
	for rows.Next() {
		var img ImageRecord
		var kind string
		if err := rows.Scan(&img.Page, &kind, &img.Hash, &img.Size, &img.Width, &img.Height); err != nil {
			return err
		}
		img.Kind = domain.ArtifactKind(kind)
		e.Images = append(e.Images, img)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sort.Slice(e.Images, func(i, j int) bool {
		if e.Images[i].Page != e.Images[j].Page {
			return e.Images[i].Page < e.Images[j].Page
		}
		return e.Images[i].Kind == domain.ArtifactPNG && e.Images[j].Kind != domain.ArtifactPNG
	})
	return nil
}
