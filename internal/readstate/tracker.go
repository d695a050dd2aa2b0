package readstate

import (
	"context"
	"sync"

	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
)

// Tracker owns the read state of one open document view. It keeps the
// authoritative local status and an in-flight flag for the completion write,
// so duplicate scroll events cannot double-fire MarkDone and a late
// MarkInProgress result cannot overwrite a newer done.
//
// Writes for the document are serialized by writeMu, so the local status
// always reflects the last write the store applied.
type Tracker struct {
	domain string
	slug   string
	marker Marker
	policy Policy
	log    logger.Logger

	writeMu sync.Mutex

	mu            sync.Mutex
	authoritative model.Status
	pending       bool
}

// NewTracker returns a tracker starting from unread.
func NewTracker(domain, slug string, m Marker, p Policy, log logger.Logger) *Tracker {
	return &Tracker{
		domain:        domain,
		slug:          slug,
		marker:        m,
		policy:        p,
		log:           log.With(logger.String("doc_key", model.DocKey(domain, slug))),
		authoritative: model.StatusUnread,
	}
}

// Status returns the authoritative local status.
func (t *Tracker) Status() model.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.authoritative
}

// Pending reports whether a completion write is in flight.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Open marks the document in progress. The store keeps done documents done;
// locally, a result arriving after a completion has been recorded is ignored.
// Errors are returned for logging only; tracking continues either way.
func (t *Tracker) Open(ctx context.Context) (model.Status, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	res, err := t.marker.MarkInProgress(ctx, t.domain, t.slug)
	if err != nil {
		t.log.Debug("mark in progress failed", logger.Error(err))
		return t.Status(), err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.authoritative != model.StatusDone {
		t.authoritative = res.Status
	}
	return t.authoritative, nil
}

// OnScroll evaluates one scroll event and, when the document qualifies,
// marks it done. It reports whether this call completed the document.
// Write failures are swallowed and the lock released so the next
// qualifying event can retry.
func (t *Tracker) OnScroll(ctx context.Context, e ScrollEvent) bool {
	t.mu.Lock()
	if t.authoritative == model.StatusDone || t.pending {
		t.mu.Unlock()
		return false
	}
	if !t.policy.ShouldComplete(e) {
		t.mu.Unlock()
		return false
	}
	t.pending = true
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	res, err := t.marker.MarkDone(ctx, t.domain, t.slug)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
	if err != nil {
		t.log.Debug("mark done failed, will retry on next scroll", logger.Error(err))
		return false
	}
	t.authoritative = res.Status
	return true
}

// SetStatus applies an explicit user choice. Unlike scroll tracking, errors
// are returned so the caller can report them. force=true with in_progress is
// the undo-completion path. A completion write already in flight finishes
// first.
func (t *Tracker) SetStatus(ctx context.Context, status model.Status, force bool) (model.Status, error) {
	if status != model.StatusDone && status != model.StatusInProgress {
		return t.Status(), model.ValidateTransition(t.Status(), status, force)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var (
		res model.ReadResult
		err error
	)
	switch {
	case status == model.StatusDone:
		res, err = t.marker.MarkDone(ctx, t.domain, t.slug)
	case status == model.StatusInProgress && force:
		res, err = t.marker.MarkInProgressOverride(ctx, t.domain, t.slug)
	case status == model.StatusInProgress:
		// without force a done document stays done
		res, err = t.marker.MarkInProgress(ctx, t.domain, t.slug)
	}
	if err != nil {
		return t.Status(), err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.authoritative = res.Status
	return t.authoritative, nil
}
