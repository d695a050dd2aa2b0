package store

import (
	"context"

	"github.com/yangwenmai/readtrack/internal/model"
)

// Table names reported to the ChangeNotifier.
const (
	TableBookmark  = "bookmark"
	TableReadState = "read_state"
	TableFavorite  = "favorite"
)

// ChangeNotifier is told which tables a committed write touched.
type ChangeNotifier interface {
	Notify(tables ...string)
}

// ReadStateApplyFunc computes the next record from the current one
// (nil when the document has no record yet).
type ReadStateApplyFunc func(cur *model.ReadState) model.ReadState

// ReadStateStore provides access to read_state persistence.
type ReadStateStore interface {
	GetReadState(ctx context.Context, docKey string) (*model.ReadState, error)
	UpdateReadState(ctx context.Context, docKey string, apply ReadStateApplyFunc) (model.ReadState, error)
	ListReadStates(ctx context.Context, domain string) ([]model.ReadState, error)
	CountReadStates(ctx context.Context, domain string) (model.StatusCounts, error)
}

// BookmarkStore provides access to bookmark persistence.
type BookmarkStore interface {
	CreateBookmark(ctx context.Context, b model.Bookmark) (bool, error)
	DeleteBookmark(ctx context.Context, slug string) (bool, error)
	GetBookmark(ctx context.Context, slug string) (*model.Bookmark, error)
	ListBookmarks(ctx context.Context) ([]model.Bookmark, error)
}

// FavoriteStore provides access to favorite persistence.
type FavoriteStore interface {
	CreateFavorite(ctx context.Context, f model.Favorite) (bool, error)
	DeleteFavorite(ctx context.Context, slug string) (bool, error)
	ListFavorites(ctx context.Context) ([]model.Favorite, error)
}

// Repository combines all store operations for the API layer.
type Repository interface {
	ReadStateStore
	BookmarkStore
	FavoriteStore
}
