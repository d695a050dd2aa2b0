// Package session keeps the documents a client currently has open. Each
// session owns the read-state tracker and the bookmark toggle of its document.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/readtrack/internal/bookmark"
	"github.com/yangwenmai/readtrack/internal/live"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/readstate"
	"github.com/yangwenmai/readtrack/internal/store"
)

// OpenRequest describes the document being opened.
type OpenRequest struct {
	Domain      string  `json:"domain"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// Session is one open document view.
type Session struct {
	ID       string
	Domain   string
	Slug     string
	Title    string
	OpenedAt time.Time

	tracker  *readstate.Tracker
	bookmark *bookmark.Toggle
	now      func() time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// View is the JSON shape of a session.
type View struct {
	ID         string       `json:"id"`
	DocKey     string       `json:"doc_key"`
	Domain     string       `json:"domain"`
	Slug       string       `json:"slug"`
	Title      string       `json:"title"`
	Status     model.Status `json:"status"`
	Pending    bool         `json:"pending"`
	Bookmarked bool         `json:"bookmarked"`
}

// View snapshots the session for the API.
func (s *Session) View() View {
	return View{
		ID:         s.ID,
		DocKey:     model.DocKey(s.Domain, s.Slug),
		Domain:     s.Domain,
		Slug:       s.Slug,
		Title:      s.Title,
		Status:     s.tracker.Status(),
		Pending:    s.tracker.Pending(),
		Bookmarked: s.bookmark.Bookmarked(),
	}
}

// Status returns the tracker's authoritative status.
func (s *Session) Status() model.Status {
	return s.tracker.Status()
}

// Bookmarked returns the displayed bookmark state.
func (s *Session) Bookmarked() bool {
	return s.bookmark.Bookmarked()
}

// Scroll feeds one scroll event to the tracker and reports whether it
// completed the document. The write outlives a cancelled request.
func (s *Session) Scroll(ctx context.Context, e readstate.ScrollEvent) bool {
	s.touch()
	return s.tracker.OnScroll(context.WithoutCancel(ctx), e)
}

// SetStatus applies an explicit status choice; errors are returned.
func (s *Session) SetStatus(ctx context.Context, status model.Status, force bool) (model.Status, error) {
	s.touch()
	return s.tracker.SetStatus(context.WithoutCancel(ctx), status, force)
}

// ToggleBookmark flips the document's bookmark; errors are returned.
func (s *Session) ToggleBookmark(ctx context.Context) (bool, error) {
	s.touch()
	return s.bookmark.Toggle(context.WithoutCancel(ctx))
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.bookmark.Close()
}

// Manager is the registry of open sessions.
type Manager struct {
	marker    readstate.Marker
	bookmarks store.BookmarkStore
	hub       *live.Hub
	policy    readstate.Policy
	log       logger.Logger
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the manager clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides how session ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// NewManager creates an empty session registry.
func NewManager(marker readstate.Marker, bookmarks store.BookmarkStore, hub *live.Hub, policy readstate.Policy, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		marker:    marker,
		bookmarks: bookmarks,
		hub:       hub,
		policy:    policy,
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session for a document and marks it in progress. A failed
// in-progress write is logged and the session is still returned.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if err := model.Required(
		model.Field{Name: "domain", Value: req.Domain},
		model.Field{Name: "slug", Value: req.Slug},
		model.Field{Name: "title", Value: req.Title},
	); err != nil {
		return nil, err
	}

	id := m.newID()
	log := m.log.With(logger.String("session_id", id))

	toggle, err := bookmark.NewToggle(context.Background(), m.hub, m.bookmarks, model.Bookmark{
		Slug:        req.Slug,
		Title:       req.Title,
		Domain:      req.Domain,
		Description: req.Description,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("bookmark toggle: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:       id,
		Domain:   req.Domain,
		Slug:     req.Slug,
		Title:    req.Title,
		OpenedAt: now,
		tracker:  readstate.NewTracker(req.Domain, req.Slug, m.marker, m.policy, log),
		bookmark: toggle,
		now:      m.now,
		lastSeen: now,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if _, err := s.tracker.Open(context.WithoutCancel(ctx)); err != nil {
		log.Warn("open: mark in progress failed", logger.Error(err))
	}
	log.Info("session opened", logger.String("doc_key", model.DocKey(req.Domain, req.Slug)))
	return s, nil
}

// Get returns the session with id or model.ErrNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	s.touch()
	return s, nil
}

// Close ends the session with id. An in-flight write still completes.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	s.close()
	return nil
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were closed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
