package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yangwenmai/readtrack/internal/content"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/readstate"
)

// ---------------------------------------------------------------------------
// Bookmarks
// ---------------------------------------------------------------------------

type bookmarkRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := s.Store.ListBookmarks(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, "failed to list bookmarks")
		return
	}
	if bookmarks == nil {
		bookmarks = []model.Bookmark{}
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := s.Store.CreateBookmark(r.Context(), model.Bookmark{
		Slug:        req.Slug,
		Title:       req.Title,
		Domain:      req.Domain,
		Description: model.StringPtr(req.Description),
	})
	if err != nil {
		s.writeFailure(w, r, err, "failed to create bookmark")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"slug": req.Slug, "created": created})
}

func (s *Server) handleGetBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := s.Store.GetBookmark(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to get bookmark")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	deleted, err := s.Store.DeleteBookmark(r.Context(), slug)
	if err != nil {
		s.writeFailure(w, r, err, "failed to delete bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug, "deleted": deleted})
}

// ---------------------------------------------------------------------------
// Favorites
// ---------------------------------------------------------------------------

type favoriteRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.Store.ListFavorites(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, "failed to list favorites")
		return
	}
	if favorites == nil {
		favorites = []model.Favorite{}
	}
	writeJSON(w, http.StatusOK, favorites)
}

func (s *Server) handleCreateFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := s.Store.CreateFavorite(r.Context(), model.Favorite{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: model.StringPtr(req.Description),
	})
	if err != nil {
		s.writeFailure(w, r, err, "failed to create favorite")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"slug": req.Slug, "created": created})
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	deleted, err := s.Store.DeleteFavorite(r.Context(), slug)
	if err != nil {
		s.writeFailure(w, r, err, "failed to delete favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": slug, "deleted": deleted})
}

// ---------------------------------------------------------------------------
// Read states
// ---------------------------------------------------------------------------

type statusRequest struct {
	Status model.Status `json:"status"` // "in_progress" or "done"
	Force  bool         `json:"force"`  // with in_progress: undo completion
}

func (s *Server) handleGetReadState(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Engine.Get(r.Context(), chi.URLParam(r, "domain"), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to get read state")
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleSetReadState(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.Engine.SetStatus(r.Context(), chi.URLParam(r, "domain"), chi.URLParam(r, "slug"), req.Status, req.Force)
	if err != nil {
		s.writeFailure(w, r, err, "failed to update read state")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListReadStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.Store.ListReadStates(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to list read states")
		return
	}
	if states == nil {
		states = []model.ReadState{}
	}
	writeJSON(w, http.StatusOK, states)
}

type progressResponse struct {
	Domain      string `json:"domain"`
	DisplayName string `json:"display_name"`
	Total       int    `json:"total"`
	model.StatusCounts
}

// handleDomainProgress counts documents per status. Documents listed in the
// domain manifest without a record are unread; without the manifest only
// recorded documents are counted.
func (s *Server) handleDomainProgress(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	counts, err := s.Store.CountReadStates(r.Context(), domain)
	if err != nil {
		s.writeFailure(w, r, err, "failed to count read states")
		return
	}

	total := counts.Unread + counts.InProgress + counts.Done
	if m, err := s.Content.DomainManifest(r.Context(), domain); err == nil {
		total = max(total, len(m.Items))
		counts.Unread = total - counts.InProgress - counts.Done
	} else {
		s.Log.Warn("progress without manifest", logger.String("domain", domain), logger.Error(err))
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Domain:       domain,
		DisplayName:  content.DisplayName(domain),
		Total:        total,
		StatusCounts: counts,
	})
}

type domainItem struct {
	content.Item
	Status model.Status `json:"status"`
}

type domainItemsResponse struct {
	Domain      string           `json:"domain"`
	DisplayName string           `json:"display_name"`
	Filter      readstate.Filter `json:"filter"`
	Items       []domainItem     `json:"items"`
}

// handleDomainItems lists a domain's documents with their read status,
// narrowed by ?filter=all|unread|read.
func (s *Server) handleDomainItems(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	filter, err := readstate.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		s.writeFailure(w, r, err, "invalid filter")
		return
	}

	m, err := s.Content.DomainManifest(r.Context(), domain)
	if err != nil {
		s.writeFailure(w, r, err, "failed to load domain manifest")
		return
	}
	states, err := s.Store.ListReadStates(r.Context(), domain)
	if err != nil {
		s.writeFailure(w, r, err, "failed to list read states")
		return
	}

	idx := readstate.IndexBySlug(states)
	kept := readstate.FilterItems(m.Items, func(it content.Item) string { return it.Slug }, idx, filter)

	items := make([]domainItem, 0, len(kept))
	for _, it := range kept {
		items = append(items, domainItem{Item: it, Status: idx.Of(it.Slug)})
	}
	writeJSON(w, http.StatusOK, domainItemsResponse{
		Domain:      domain,
		DisplayName: content.DisplayName(domain),
		Filter:      filter,
		Items:       items,
	})
}
