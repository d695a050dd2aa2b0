// Package readstate tracks per-document read progress: the Engine applies
// unread → in_progress → done transitions to the store, the Policy decides
// from scroll positions when a document counts as read, and the Tracker
// serialises writes for one open document.
package readstate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/store"
)

// Marker is the set of read-state writes a Tracker needs.
type Marker interface {
	MarkInProgress(ctx context.Context, domain, slug string) (model.ReadResult, error)
	MarkInProgressOverride(ctx context.Context, domain, slug string) (model.ReadResult, error)
	MarkDone(ctx context.Context, domain, slug string) (model.ReadResult, error)
}

var _ Marker = (*Engine)(nil)

// Engine applies read-state transitions. It keeps no state between calls;
// each operation is one atomic read-and-upsert in the store.
type Engine struct {
	store store.ReadStateStore
	now   func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine backed by s.
func NewEngine(s store.ReadStateStore, opts ...EngineOption) *Engine {
	e := &Engine{store: s, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MarkInProgress records that the document was opened. A document that is
// already done stays done: last_read_at is refreshed and completed_at is kept
// (or set now if it was missing). The returned status is what was stored.
func (e *Engine) MarkInProgress(ctx context.Context, domain, slug string) (model.ReadResult, error) {
	return e.update(ctx, domain, slug, func(cur *model.ReadState, now int64) model.ReadState {
		next := stamped(domain, slug, now)
		if cur != nil && cur.Status == model.StatusDone {
			completed := now
			if cur.CompletedAt != nil {
				completed = *cur.CompletedAt
			}
			next.Status = model.StatusDone
			next.CompletedAt = &completed
			return next
		}
		next.Status = model.StatusInProgress
		return next
	})
}

// MarkInProgressOverride moves the document to in_progress whatever its
// current status and clears completed_at. It is the only way back from done
// and must only be reached from an explicit user action.
func (e *Engine) MarkInProgressOverride(ctx context.Context, domain, slug string) (model.ReadResult, error) {
	return e.update(ctx, domain, slug, func(_ *model.ReadState, now int64) model.ReadState {
		next := stamped(domain, slug, now)
		next.Status = model.StatusInProgress
		return next
	})
}

// MarkDone marks the document as read. Repeated calls keep it done and
// refresh the timestamps.
func (e *Engine) MarkDone(ctx context.Context, domain, slug string) (model.ReadResult, error) {
	return e.update(ctx, domain, slug, func(_ *model.ReadState, now int64) model.ReadState {
		next := stamped(domain, slug, now)
		completed := now
		next.Status = model.StatusDone
		next.CompletedAt = &completed
		return next
	})
}

// SetStatus applies a user-requested status. force is only meaningful for
// in_progress and selects the override path.
func (e *Engine) SetStatus(ctx context.Context, domain, slug string, status model.Status, force bool) (model.ReadResult, error) {
	switch status {
	case model.StatusDone:
		return e.MarkDone(ctx, domain, slug)
	case model.StatusInProgress:
		if force {
			return e.MarkInProgressOverride(ctx, domain, slug)
		}
		return e.MarkInProgress(ctx, domain, slug)
	default:
		return model.ReadResult{}, fmt.Errorf("%w: status must be %s or %s", model.ErrValidation, model.StatusInProgress, model.StatusDone)
	}
}

// Get returns the stored state of a document, or an implicit unread state.
func (e *Engine) Get(ctx context.Context, domain, slug string) (model.ReadState, error) {
	if err := validateDoc(domain, slug); err != nil {
		return model.ReadState{}, err
	}
	rs, err := e.store.GetReadState(ctx, model.DocKey(domain, slug))
	if err != nil {
		return model.ReadState{}, err
	}
	if rs == nil {
		return model.UnreadState(domain, slug), nil
	}
	return *rs, nil
}

func (e *Engine) update(ctx context.Context, domain, slug string, apply func(cur *model.ReadState, now int64) model.ReadState) (model.ReadResult, error) {
	if err := validateDoc(domain, slug); err != nil {
		return model.ReadResult{}, err
	}
	key := model.DocKey(domain, slug)
	now := e.now().UnixMilli()

	rs, err := e.store.UpdateReadState(ctx, key, func(cur *model.ReadState) model.ReadState {
		return apply(cur, now)
	})
	if err != nil {
		return model.ReadResult{}, err
	}
	return model.ReadResult{DocKey: rs.DocKey, Status: rs.Status}, nil
}

// stamped returns a record for the document with last_read_at and updated_at
// set to now and no completion time.
func stamped(domain, slug string, now int64) model.ReadState {
	lastRead := now
	rs := model.UnreadState(domain, slug)
	rs.LastReadAt = &lastRead
	rs.UpdatedAt = now
	return rs
}

// validateDoc also rejects ':' in the domain, which would make DocKey
// ambiguous.
func validateDoc(domain, slug string) error {
	if err := model.Required(
		model.Field{Name: "domain", Value: domain},
		model.Field{Name: "slug", Value: slug},
	); err != nil {
		return err
	}
	if strings.Contains(domain, ":") {
		return fmt.Errorf("%w: domain %q must not contain ':'", model.ErrValidation, domain)
	}
	return nil
}
