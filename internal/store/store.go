package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ ReadStateStore = (*Store)(nil)
	_ BookmarkStore  = (*Store)(nil)
	_ FavoriteStore  = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db     *sql.DB
	notify ChangeNotifier
	now    func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier registers n to be told about every committed write.
func WithNotifier(n ChangeNotifier) Option {
	return func(s *Store) { s.notify = n }
}

// WithClock overrides the clock used for migration journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how favorite ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a new Store and applies pending migrations.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, now: time.Now, newID: newUUID}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// changed reports a committed write to the notifier, if any.
func (s *Store) changed(tables ...string) {
	if s.notify != nil {
		s.notify.Notify(tables...)
	}
}

// ---------------------------------------------------------------------------
// Migrations
// ---------------------------------------------------------------------------

// migration is one forward-only schema change. IDs are never reused or
// reordered; new changes are appended to the migrations slice.
type migration struct {
	id string
	up func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{"0000_create_favorite_table", migrateCreateFavorite},
	{"0001_create_bookmark_table", migrateCreateBookmark},
	{"0002_create_read_state_table", migrateCreateReadState},
	{"0003_unique_favorite_slug", migrateUniqueFavoriteSlug},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, id := range applied {
		done[id] = true
	}

	for _, m := range migrations {
		if done[m.id] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.id, err)
		}
	}
	return nil
}

// apply runs one migration and records it in the journal atomically.
func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`,
		m.id, s.now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// AppliedMigrations returns the journal of applied migration ids in the order
// they were defined.
func (s *Store) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM schema_migrations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func migrateCreateFavorite(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS favorite (
		id          TEXT PRIMARY KEY,
		slug        TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT
	)`)
	return err
}

func migrateCreateBookmark(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS bookmark (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		slug        TEXT NOT NULL UNIQUE,
		title       TEXT NOT NULL,
		domain      TEXT NOT NULL,
		description TEXT
	)`)
	return err
}

func migrateCreateReadState(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS read_state (
		doc_key      TEXT PRIMARY KEY,
		domain       TEXT NOT NULL,
		slug         TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'unread'
		             CHECK (status IN ('unread', 'in_progress', 'done')),
		last_read_at INTEGER,
		completed_at INTEGER,
		updated_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_read_state_domain ON read_state(domain, updated_at DESC);
	`)
	return err
}

// migrateUniqueFavoriteSlug drops duplicate favorites (keeping the first row
// per slug) so favorites can use insert-if-absent like bookmarks.
func migrateUniqueFavoriteSlug(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM favorite
		WHERE rowid NOT IN (SELECT MIN(rowid) FROM favorite GROUP BY slug)`); err != nil {
		return fmt.Errorf("dedupe favorites: %w", err)
	}
	_, err := tx.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_favorite_slug ON favorite(slug)`)
	return err
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}
