package readstate

import (
	"fmt"

	"github.com/yangwenmai/readtrack/internal/model"
)

// Filter narrows a domain's document list by read status.
type Filter string

// Filter values
const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
	FilterRead   Filter = "read"
)

// ParseFilter accepts "", "all", "unread" and "read". Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUnread, FilterRead:
		return Filter(s), nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", model.ErrValidation, s)
}

// Match reports whether a document with status passes the filter.
// "unread" keeps everything not yet done, so in-progress documents stay visible.
func (f Filter) Match(status model.Status) bool {
	switch f {
	case FilterUnread:
		return status != model.StatusDone
	case FilterRead:
		return status == model.StatusDone
	default:
		return true
	}
}

// StatusBySlug indexes read states by slug. Slugs missing from the index are unread.
type StatusBySlug map[string]model.Status

// IndexBySlug builds a StatusBySlug from one domain's read states.
func IndexBySlug(states []model.ReadState) StatusBySlug {
	idx := make(StatusBySlug, len(states))
	for _, rs := range states {
		idx[rs.Slug] = rs.Status
	}
	return idx
}

// Of returns the status for slug.
func (idx StatusBySlug) Of(slug string) model.Status {
	if st, ok := idx[slug]; ok {
		return st
	}
	return model.StatusUnread
}

// FilterItems keeps the items whose status, looked up by slug, passes f.
// Item order is preserved.
func FilterItems[T any](items []T, slugOf func(T) string, idx StatusBySlug, f Filter) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if f.Match(idx.Of(slugOf(it))) {
			out = append(out, it)
		}
	}
	return out
}
