package model

import (
	"fmt"
	"time"
)

// Status is the read progress of a single document.
type Status string

// Read status constants
const (
	StatusUnread     Status = "unread"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusDone:
		return 2
	default:
		return 0
	}
}

// ValidateTransition checks a user-requested status change.
// Forward moves are always allowed. The only backward move is done → in_progress,
// and only when force is set. unread is never a valid target.
func ValidateTransition(from, to Status, force bool) error {
	if !to.Valid() || to == StatusUnread {
		return fmt.Errorf("%w: invalid target status %q", ErrValidation, to)
	}
	if to.rank() >= from.rank() {
		return nil
	}
	if from == StatusDone && to == StatusInProgress && force {
		return nil
	}
	return fmt.Errorf("%w: cannot move %s back to %s", ErrValidation, from, to)
}

// DocKey builds the composite read-state key for a document.
func DocKey(domain, slug string) string {
	return domain + ":" + slug
}

// ReadState is the persisted progress of one document, keyed by DocKey.
// Timestamps are epoch milliseconds.
type ReadState struct {
	DocKey      string `json:"doc_key"`
	Domain      string `json:"domain"`
	Slug        string `json:"slug"`
	Status      Status `json:"status"`
	LastReadAt  *int64 `json:"last_read_at,omitempty"`
	CompletedAt *int64 `json:"completed_at,omitempty"`
	UpdatedAt   int64  `json:"updated_at"`
}

// UnreadState is the implicit state of a document that has never been opened.
func UnreadState(domain, slug string) ReadState {
	return ReadState{
		DocKey: DocKey(domain, slug),
		Domain: domain,
		Slug:   slug,
		Status: StatusUnread,
	}
}

// ReadResult is what the read-state operations report back to callers.
type ReadResult struct {
	DocKey string `json:"doc_key"`
	Status Status `json:"status"`
}

// StatusCounts holds the number of documents per status within a domain.
type StatusCounts struct {
	Unread     int `json:"unread"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

// EpochMillis converts t to epoch milliseconds.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
