package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yangwenmai/readtrack/internal/model"
)

// ---------------------------------------------------------------------------
// Bookmarks
// ---------------------------------------------------------------------------

// CreateBookmark inserts b unless a bookmark with the same slug exists.
// A duplicate is a silent no-op: the first title and description are kept.
// created reports whether a row was inserted.
func (s *Store) CreateBookmark(ctx context.Context, b model.Bookmark) (created bool, err error) {
	if err := b.Validate(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmark (slug, title, domain, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		b.Slug, b.Title, b.Domain, b.Description,
	)
	if err != nil {
		return false, fmt.Errorf("create bookmark %s: %w", b.Slug, err)
	}
	return s.affected(res, TableBookmark)
}

// DeleteBookmark removes the bookmark for slug. Deleting a missing slug is a no-op.
func (s *Store) DeleteBookmark(ctx context.Context, slug string) (deleted bool, err error) {
	if err := model.Required(model.Field{Name: "slug", Value: slug}); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmark WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("delete bookmark %s: %w", slug, err)
	}
	return s.affected(res, TableBookmark)
}

// GetBookmark returns the bookmark for slug or model.ErrNotFound.
func (s *Store) GetBookmark(ctx context.Context, slug string) (*model.Bookmark, error) {
	var b model.Bookmark
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, title, domain, description FROM bookmark WHERE slug = ?`, slug,
	).Scan(&b.Slug, &b.Title, &b.Domain, &b.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bookmark %s: %w", slug, err)
	}
	return &b, nil
}

// ListBookmarks returns all bookmarks in insertion order.
func (s *Store) ListBookmarks(ctx context.Context) ([]model.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug, title, domain, description FROM bookmark ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []model.Bookmark
	for rows.Next() {
		var b model.Bookmark
		if err := rows.Scan(&b.Slug, &b.Title, &b.Domain, &b.Description); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Favorites
// ---------------------------------------------------------------------------

// CreateFavorite inserts f unless the slug is already a favorite. An empty
// ID is filled in.
func (s *Store) CreateFavorite(ctx context.Context, f model.Favorite) (created bool, err error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	if f.ID == "" {
		f.ID = s.newID()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO favorite (id, slug, title, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		f.ID, f.Slug, f.Title, f.Description,
	)
	if err != nil {
		return false, fmt.Errorf("create favorite %s: %w", f.Slug, err)
	}
	return s.affected(res, TableFavorite)
}

// DeleteFavorite removes the favorite for slug. Missing slugs are a no-op.
func (s *Store) DeleteFavorite(ctx context.Context, slug string) (deleted bool, err error) {
	if err := model.Required(model.Field{Name: "slug", Value: slug}); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM favorite WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("delete favorite %s: %w", slug, err)
	}
	return s.affected(res, TableFavorite)
}

// ListFavorites returns all favorites in insertion order.
func (s *Store) ListFavorites(ctx context.Context) ([]model.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, title, description FROM favorite ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var out []model.Favorite
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.ID, &f.Slug, &f.Title, &f.Description); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// affected notifies table when res changed at least one row.
func (s *Store) affected(res sql.Result, table string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.changed(table)
	}
	return n > 0, nil
}

func newUUID() string {
	return uuid.New().String()
}
