// Package bookmark implements the bookmark button of an open document: an
// optimistic on/off value written through the store and kept in sync with a
// live query on the bookmark table.
package bookmark

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yangwenmai/readtrack/internal/live"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/optimistic"
	"github.com/yangwenmai/readtrack/internal/store"
)

// Toggle is the bookmark state of one document.
type Toggle struct {
	store store.BookmarkStore
	doc   model.Bookmark
	value *optimistic.Value[bool]
	sub   *live.Subscription[bool]
	log   logger.Logger
	done  chan struct{}

	writeMu sync.Mutex // one bookmark write at a time, in tap order
}

// NewToggle subscribes to the bookmark for doc.Slug and starts from its
// current state. doc must carry everything CreateBookmark needs.
func NewToggle(ctx context.Context, hub *live.Hub, s store.BookmarkStore, doc model.Bookmark, log logger.Logger) (*Toggle, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	sub := live.Subscribe(ctx, hub, []string{store.TableBookmark}, func(ctx context.Context) (bool, error) {
		return exists(ctx, s, doc.Slug)
	})

	// The first snapshot becomes the initial value; follow only sees later ones.
	select {
	case <-sub.C:
	default:
	}
	initial := false
	if snap, ok := sub.Current(); ok && snap.Err == nil {
		initial = snap.Data
	}

	t := &Toggle{
		store: s,
		doc:   doc,
		value: optimistic.New(initial),
		sub:   sub,
		log:   log.With(logger.String("slug", doc.Slug)),
		done:  make(chan struct{}),
	}
	go t.follow()
	return t, nil
}

// Bookmarked returns the displayed state, including an unconfirmed toggle.
func (t *Toggle) Bookmarked() bool {
	return t.value.Displayed()
}

// Pending reports whether a toggle write is in flight.
func (t *Toggle) Pending() bool {
	return t.value.Pending()
}

// Toggle flips the bookmark. The new state is visible through Bookmarked
// before the write finishes; on failure it is rolled back and the error
// returned so the caller can tell the user.
func (t *Toggle) Toggle(ctx context.Context) (bool, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.value.ApplyFunc(ctx, func(on bool) bool { return !on }, t.write)
}

// Set bookmarks (on=true) or un-bookmarks the document.
func (t *Toggle) Set(ctx context.Context, on bool) (bool, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.value.Apply(ctx, on, func(ctx context.Context) (bool, error) {
		return t.write(ctx, on)
	})
}

func (t *Toggle) write(ctx context.Context, on bool) (bool, error) {
	var err error
	if on {
		_, err = t.store.CreateBookmark(ctx, t.doc)
	} else {
		_, err = t.store.DeleteBookmark(ctx, t.doc.Slug)
	}
	if err != nil {
		return false, fmt.Errorf("set bookmark %s=%t: %w", t.doc.Slug, on, err)
	}
	return on, nil
}

// Close stops following the live query.
func (t *Toggle) Close() {
	t.sub.Close()
	<-t.done
}

func (t *Toggle) follow() {
	defer close(t.done)
	for snap := range t.sub.C {
		if snap.Err != nil {
			t.log.Warn("bookmark query failed", logger.Error(snap.Err))
			continue
		}
		t.value.Reconcile(snap.Data)
	}
}

func exists(ctx context.Context, s store.BookmarkStore, slug string) (bool, error) {
	_, err := s.GetBookmark(ctx, slug)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
