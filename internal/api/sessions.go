package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/readstate"
	"github.com/yangwenmai/readtrack/internal/session"
)

// handleOpenSession opens a document view and marks it in progress. A
// missing title is looked up in the content service.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req session.OpenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := model.Required(
		model.Field{Name: "domain", Value: req.Domain},
		model.Field{Name: "slug", Value: req.Slug},
	); err != nil {
		s.writeFailure(w, r, err, "invalid session")
		return
	}

	if req.Title == "" {
		post, err := s.Content.Post(r.Context(), req.Domain, req.Slug)
		if err != nil {
			s.writeFailure(w, r, err, "failed to load post")
			return
		}
		req.Title = post.Meta.Title
		if req.Description == nil {
			req.Description = model.StringPtr(post.Meta.Description)
		}
	}

	sess, err := s.Sessions.Open(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err, "failed to open session")
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Close(chi.URLParam(r, "id")); err != nil {
		s.writeFailure(w, r, err, "failed to close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scrollResponse struct {
	Completed bool         `json:"completed"`
	Status    model.Status `json:"status"`
}

// handleScroll feeds one scroll event to the session. Write failures are
// not reported; the next qualifying event retries.
func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to get session")
		return
	}
	var ev readstate.ScrollEvent
	if !decodeBody(w, r, &ev) {
		return
	}

	completed := sess.Scroll(r.Context(), ev)
	writeJSON(w, http.StatusOK, scrollResponse{Completed: completed, Status: sess.Status()})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to get session")
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status, err := sess.SetStatus(r.Context(), req.Status, req.Force)
	if err != nil {
		s.writeFailure(w, r, err, "failed to update read state")
		return
	}
	writeJSON(w, http.StatusOK, model.ReadResult{DocKey: model.DocKey(sess.Domain, sess.Slug), Status: status})
}

func (s *Server) handleSessionBookmark(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to get session")
		return
	}

	on, err := sess.ToggleBookmark(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, "failed to toggle bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slug": sess.Slug, "bookmarked": on})
}
