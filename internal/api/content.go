package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yangwenmai/readtrack/internal/content"
)

func (s *Server) handleRootManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.Content.RootManifest(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, "failed to load manifest")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type domainListItem struct {
	content.DomainSummary
	DisplayName string `json:"display_name"`
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	list, err := s.Content.Domains(r.Context())
	if err != nil {
		s.writeFailure(w, r, err, "failed to load domains")
		return
	}
	items := make([]domainListItem, 0, len(list.Items))
	for _, d := range list.Items {
		items = append(items, domainListItem{DomainSummary: d, DisplayName: content.DisplayName(d.Domain)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleDomainManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.Content.DomainManifest(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to load domain manifest")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type postResponse struct {
	*content.Post
	ReadingMinutes *int   `json:"reading_minutes,omitempty"`
	ShareURL       string `json:"share_url"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	domain, slug := chi.URLParam(r, "domain"), chi.URLParam(r, "slug")
	p, err := s.Content.Post(r.Context(), domain, slug)
	if err != nil {
		s.writeFailure(w, r, err, "failed to load post")
		return
	}

	resp := postResponse{Post: p, ShareURL: content.ShareURL(s.ShareBaseURL, domain, slug)}
	if minutes, ok := p.Meta.Minutes(); ok {
		resp.ReadingMinutes = &minutes
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSearch proxies a post search. tags is comma separated.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := content.SearchParams{
		Domain: q.Get("domain"),
		Query:  q.Get("q"),
		Tags:   splitComma(q.Get("tags")),
		Sort:   q.Get("sort"),
	}
	if p.Sort != "" && p.Sort != content.SortUpdatedDesc && p.Sort != content.SortOrderAsc {
		writeError(w, http.StatusBadRequest, "sort must be updatedAt_desc or order_asc")
		return
	}
	var err error
	if p.Page, err = atoiOr(q.Get("page"), 1); err != nil {
		writeError(w, http.StatusBadRequest, "page must be a number")
		return
	}
	if p.PageSize, err = atoiOr(q.Get("pageSize"), 20); err != nil {
		writeError(w, http.StatusBadRequest, "pageSize must be a number")
		return
	}

	res, err := s.Content.Search(r.Context(), p)
	if err != nil {
		s.writeFailure(w, r, err, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	domain, slug := chi.URLParam(r, "domain"), chi.URLParam(r, "slug")
	writeJSON(w, http.StatusOK, map[string]string{
		"domain": domain,
		"slug":   slug,
		"url":    content.ShareURL(s.ShareBaseURL, domain, slug),
	})
}

func (s *Server) handleReferencePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.Previewer.Preview(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		s.writeFailure(w, r, err, "failed to preview reference")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func atoiOr(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
