package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yangwenmai/readtrack/internal/content"
	"github.com/yangwenmai/readtrack/internal/live"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/readstate"
	"github.com/yangwenmai/readtrack/internal/session"
	"github.com/yangwenmai/readtrack/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Previewer extracts a preview of an external reference page.
type Previewer interface {
	Preview(ctx context.Context, url string) (*content.ReferencePreview, error)
}

// Deps are the collaborators of the API server.
type Deps struct {
	Store     store.Repository
	Engine    *readstate.Engine
	Sessions  *session.Manager
	Hub       *live.Hub
	Content   content.Service
	Previewer Previewer
	Log       logger.Logger

	CORSOrigin   string
	ShareBaseURL string
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	Deps
	router chi.Router
}

// New creates a new API server.
func New(d Deps) *Server {
	if d.CORSOrigin == "" {
		d.CORSOrigin = "*"
	}
	srv := &Server{Deps: d, router: chi.NewRouter()}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(s.Log))
	r.Use(cors(s.CORSOrigin))
	r.Use(limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/bookmarks", s.handleListBookmarks)
		r.Post("/bookmarks", s.handleCreateBookmark)
		r.Get("/bookmarks/{slug}", s.handleGetBookmark)
		r.Delete("/bookmarks/{slug}", s.handleDeleteBookmark)

		r.Get("/favorites", s.handleListFavorites)
		r.Post("/favorites", s.handleCreateFavorite)
		r.Delete("/favorites/{slug}", s.handleDeleteFavorite)

		r.Get("/read-states/{domain}/{slug}", s.handleGetReadState)
		r.Put("/read-states/{domain}/{slug}", s.handleSetReadState)

		r.Get("/domains/{domain}/read-states", s.handleListReadStates)
		r.Get("/domains/{domain}/progress", s.handleDomainProgress)
		r.Get("/domains/{domain}/items", s.handleDomainItems)

		r.Post("/sessions", s.handleOpenSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleCloseSession)
		r.Post("/sessions/{id}/scroll", s.handleScroll)
		r.Put("/sessions/{id}/status", s.handleSessionStatus)
		r.Post("/sessions/{id}/bookmark", s.handleSessionBookmark)

		r.Get("/live/bookmarks", s.handleLiveBookmarks)
		r.Get("/live/domains/{domain}/read-states", s.handleLiveDomainReadStates)
		r.Get("/live/read-states/{domain}/{slug}", s.handleLiveReadState)

		r.Get("/content/manifest", s.handleRootManifest)
		r.Get("/content/domains", s.handleDomains)
		r.Get("/content/domains/{domain}/manifest", s.handleDomainManifest)
		r.Get("/content/posts/{domain}/{slug}", s.handlePost)
		r.Get("/content/search", s.handleSearch)

		r.Get("/share/{domain}/{slug}", s.handleShare)
		r.Get("/references/preview", s.handleReferencePreview)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps err to a status code. Validation errors carry their
// message; anything unexpected is logged and reported as msg.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var he *content.HTTPError
	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &he) && he.StatusCode == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &he):
		s.Log.Warn(msg, logger.String("request_id", middleware.GetReqID(r.Context())), logger.Error(err))
		writeError(w, http.StatusBadGateway, "content service unavailable")
	default:
		s.Log.Error(msg, logger.String("request_id", middleware.GetReqID(r.Context())), logger.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
