package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yangwenmai/readtrack/internal/content"
	"github.com/yangwenmai/readtrack/internal/live"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/model"
	"github.com/yangwenmai/readtrack/internal/readstate"
	"github.com/yangwenmai/readtrack/internal/session"
	"github.com/yangwenmai/readtrack/internal/store"
)

type fakePreviewer struct{}

func (fakePreviewer) Preview(_ context.Context, url string) (*content.ReferencePreview, error) {
	if !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("%w: url must be http(s)", model.ErrValidation)
	}
	return &content.ReferencePreview{URL: url, Title: "MDN", Excerpt: "Reference docs"}, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hub := live.NewHub()
	s, err := store.New(db, store.WithNotifier(hub))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	engine := readstate.NewEngine(s)
	n := 0
	sessions := session.NewManager(engine, s, hub, readstate.DefaultPolicy(), logger.NewNop(),
		session.WithIDGenerator(func() string { n++; return fmt.Sprintf("s%d", n) }),
	)
	t.Cleanup(sessions.CloseAll)

	srv := New(Deps{
		Store:        s,
		Engine:       engine,
		Sessions:     sessions,
		Hub:          hub,
		Content:      content.NewStubService(),
		Previewer:    fakePreviewer{},
		Log:          logger.NewNop(),
		ShareBaseURL: "https://example.com/",
	})
	return srv, s
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode JSON: %v\nbody: %s", err, rr.Body.String())
	}
	return result
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "GET", "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q, want *", got)
	}
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "OPTIONS", "/api/bookmarks", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

// ---------------------------------------------------------------------------
// Bookmarks and favorites
// ---------------------------------------------------------------------------

func TestCreateBookmark(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	body := `{"slug":"flexbox","title":"Flexbox","domain":"css"}`
	rr := doRequest(t, h, "POST", "/api/bookmarks", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if decodeJSON(t, rr)["created"] != true {
		t.Error("created = false, want true")
	}

	rr = doRequest(t, h, "POST", "/api/bookmarks", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d, want %d", rr.Code, http.StatusOK)
	}
	if decodeJSON(t, rr)["created"] != false {
		t.Error("duplicate created = true, want false")
	}
}

func TestCreateBookmark_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/bookmarks", `{"slug":"flexbox","domain":"css"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if msg, _ := decodeJSON(t, rr)["error"].(string); !strings.Contains(msg, "title") {
		t.Errorf("error = %q, want it to name the title field", msg)
	}

	rr = doRequest(t, h, "POST", "/api/bookmarks", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetAndDeleteBookmark(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "POST", "/api/bookmarks", `{"slug":"grid","title":"Grid","domain":"css","description":"2D layout"}`)

	rr := doRequest(t, h, "GET", "/api/bookmarks/grid", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rr.Code, http.StatusOK)
	}
	b := decodeJSON(t, rr)
	if b["domain"] != "css" || b["description"] != "2D layout" {
		t.Errorf("bookmark = %v", b)
	}

	rr = doRequest(t, h, "DELETE", "/api/bookmarks/grid", "")
	if decodeJSON(t, rr)["deleted"] != true {
		t.Error("deleted = false, want true")
	}
	rr = doRequest(t, h, "DELETE", "/api/bookmarks/grid", "")
	if decodeJSON(t, rr)["deleted"] != false {
		t.Error("second delete = true, want false")
	}

	rr = doRequest(t, h, "GET", "/api/bookmarks/grid", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListBookmarks_Empty(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "GET", "/api/bookmarks", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rr.Body.String())
	}
}

func TestFavorites(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/favorites", `{"slug":"closures","title":"Closures"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	rr = doRequest(t, h, "GET", "/api/favorites", "")
	var favs []model.Favorite
	json.Unmarshal(rr.Body.Bytes(), &favs)
	if len(favs) != 1 || favs[0].Slug != "closures" {
		t.Fatalf("favorites = %+v", favs)
	}

	rr = doRequest(t, h, "DELETE", "/api/favorites/closures", "")
	if decodeJSON(t, rr)["deleted"] != true {
		t.Error("deleted = false, want true")
	}
}

// ---------------------------------------------------------------------------
// Read states
// ---------------------------------------------------------------------------

func TestReadState_ImplicitUnread(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "GET", "/api/read-states/css/flexbox", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	rs := decodeJSON(t, rr)
	if rs["status"] != string(model.StatusUnread) || rs["doc_key"] != "css:flexbox" {
		t.Errorf("read state = %v", rs)
	}
}

func TestSetReadState(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "PUT", "/api/read-states/css/flexbox", `{"status":"done"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if decodeJSON(t, rr)["status"] != string(model.StatusDone) {
		t.Fatalf("want done")
	}

	// without force a done document stays done
	rr = doRequest(t, h, "PUT", "/api/read-states/css/flexbox", `{"status":"in_progress"}`)
	if got := decodeJSON(t, rr)["status"]; got != string(model.StatusDone) {
		t.Errorf("status after plain in_progress = %v, want done", got)
	}

	rr = doRequest(t, h, "PUT", "/api/read-states/css/flexbox", `{"status":"in_progress","force":true}`)
	if got := decodeJSON(t, rr)["status"]; got != string(model.StatusInProgress) {
		t.Errorf("status after forced in_progress = %v, want in_progress", got)
	}

	rr = doRequest(t, h, "PUT", "/api/read-states/css/flexbox", `{"status":"unread"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unread target status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDomainProgress(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "PUT", "/api/read-states/html/what-is-html", `{"status":"in_progress"}`)

	rr := doRequest(t, h, "GET", "/api/domains/html/progress", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	p := decodeJSON(t, rr)
	if p["total"] != float64(2) || p["unread"] != float64(1) || p["in_progress"] != float64(1) || p["done"] != float64(0) {
		t.Errorf("progress = %v", p)
	}
	if p["display_name"] != "HTML" {
		t.Errorf("display_name = %v, want HTML", p["display_name"])
	}
}

func TestDomainItems_Filter(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "PUT", "/api/read-states/html/semantic-elements", `{"status":"done"}`)

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"what-is-html", "semantic-elements"}},
		{"all", []string{"what-is-html", "semantic-elements"}},
		{"unread", []string{"what-is-html"}},
		{"read", []string{"semantic-elements"}},
	}
	for _, tt := range tests {
		t.Run("filter="+tt.filter, func(t *testing.T) {
			rr := doRequest(t, h, "GET", "/api/domains/html/items?filter="+tt.filter, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
			}
			var resp domainItemsResponse
			json.Unmarshal(rr.Body.Bytes(), &resp)
			var got []string
			for _, it := range resp.Items {
				got = append(got, it.Slug)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
		})
	}

	rr := doRequest(t, h, "GET", "/api/domains/html/items?filter=bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bogus filter status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	rr = doRequest(t, h, "GET", "/api/domains/cobol/items", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown domain status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestSession_ReadToCompletion(t *testing.T) {
	srv, s := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/sessions", `{"domain":"css","slug":"flexbox"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open status = %d, want %d, body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	view := decodeJSON(t, rr)
	if view["title"] != "Flexbox" {
		t.Errorf("title = %v, want Flexbox from the content service", view["title"])
	}
	if view["status"] != string(model.StatusInProgress) {
		t.Errorf("status = %v, want in_progress", view["status"])
	}
	id := view["id"].(string)

	// not near the bottom yet
	rr = doRequest(t, h, "POST", "/api/sessions/"+id+"/scroll", `{"viewportHeight":600,"contentHeight":2000,"scrollOffsetY":300}`)
	if decodeJSON(t, rr)["completed"] != false {
		t.Fatal("completed early")
	}

	rr = doRequest(t, h, "POST", "/api/sessions/"+id+"/scroll", `{"viewportHeight":600,"contentHeight":2000,"scrollOffsetY":1380}`)
	res := decodeJSON(t, rr)
	if res["completed"] != true || res["status"] != string(model.StatusDone) {
		t.Fatalf("scroll result = %v, want completed done", res)
	}

	rs, err := s.GetReadState(context.Background(), "css:flexbox")
	if err != nil || rs == nil || rs.Status != model.StatusDone {
		t.Fatalf("stored = %+v, %v; want done", rs, err)
	}

	rr = doRequest(t, h, "DELETE", "/api/sessions/"+id, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("close status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	rr = doRequest(t, h, "GET", "/api/sessions/"+id, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after close status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSession_ShortDocumentNotCompletedOnRender(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/sessions", `{"domain":"css","slug":"grid","title":"Grid"}`)
	id := decodeJSON(t, rr)["id"].(string)

	rr = doRequest(t, h, "POST", "/api/sessions/"+id+"/scroll", `{"viewportHeight":800,"contentHeight":780,"scrollOffsetY":0}`)
	res := decodeJSON(t, rr)
	if res["completed"] != false || res["status"] != string(model.StatusInProgress) {
		t.Errorf("scroll result = %v, want in_progress", res)
	}
}

func TestSession_UnknownPost(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "POST", "/api/sessions", `{"domain":"css","slug":"nope"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSession_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "POST", "/api/sessions", `{"slug":"flexbox"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSession_StatusAndBookmark(t *testing.T) {
	srv, s := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/sessions", `{"domain":"javascript","slug":"closures"}`)
	id := decodeJSON(t, rr)["id"].(string)

	rr = doRequest(t, h, "PUT", "/api/sessions/"+id+"/status", `{"status":"done"}`)
	if got := decodeJSON(t, rr)["status"]; got != string(model.StatusDone) {
		t.Fatalf("status = %v, want done", got)
	}
	rr = doRequest(t, h, "PUT", "/api/sessions/"+id+"/status", `{"status":"in_progress","force":true}`)
	if got := decodeJSON(t, rr)["status"]; got != string(model.StatusInProgress) {
		t.Fatalf("status = %v, want in_progress", got)
	}

	rr = doRequest(t, h, "POST", "/api/sessions/"+id+"/bookmark", "")
	if decodeJSON(t, rr)["bookmarked"] != true {
		t.Fatal("bookmarked = false after first toggle")
	}
	b, err := s.GetBookmark(context.Background(), "closures")
	if err != nil {
		t.Fatalf("GetBookmark: %v", err)
	}
	if b.Title != "Closures" || b.Domain != "javascript" {
		t.Errorf("bookmark = %+v", b)
	}

	rr = doRequest(t, h, "POST", "/api/sessions/"+id+"/bookmark", "")
	if decodeJSON(t, rr)["bookmarked"] != false {
		t.Error("bookmarked = true after second toggle")
	}
}

// ---------------------------------------------------------------------------
// Content
// ---------------------------------------------------------------------------

func TestContent_Post(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "GET", "/api/content/posts/css/grid", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	p := decodeJSON(t, rr)
	if p["share_url"] != "https://example.com/learn/css/grid" {
		t.Errorf("share_url = %v", p["share_url"])
	}
	if m, _ := p["reading_minutes"].(float64); m < 1 {
		t.Errorf("reading_minutes = %v, want >= 1", p["reading_minutes"])
	}
	meta, _ := p["meta"].(map[string]any)
	if meta["title"] != "Grid" {
		t.Errorf("meta.title = %v, want Grid", meta["title"])
	}
}

func TestContent_Domains(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "GET", "/api/content/domains", "")
	var resp struct {
		Items []domainListItem `json:"items"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	names := map[string]string{}
	for _, d := range resp.Items {
		names[d.Domain] = d.DisplayName
	}
	if names["javascript"] != "JavaScript" || names["css"] != "CSS" {
		t.Errorf("display names = %v", names)
	}
}

func TestContent_Search(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "GET", "/api/content/search?domain=css&sort=order_asc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var res content.SearchResult
	json.Unmarshal(rr.Body.Bytes(), &res)
	if res.Total != 2 || len(res.Items) != 2 {
		t.Errorf("search = %+v, want 2 css hits", res)
	}

	for _, q := range []string{"sort=random", "page=two", "pageSize=x"} {
		rr := doRequest(t, h, "GET", "/api/content/search?"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestShare(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doRequest(t, srv.Handler(), "GET", "/api/share/html/what-is-html", "")
	if got := decodeJSON(t, rr)["url"]; got != "https://example.com/learn/html/what-is-html" {
		t.Errorf("url = %v", got)
	}
}

func TestReferencePreview(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "GET", "/api/references/preview?url=https://developer.mozilla.org", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if decodeJSON(t, rr)["title"] != "MDN" {
		t.Error("title mismatch")
	}

	rr = doRequest(t, h, "GET", "/api/references/preview?url=ftp://example.com", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad url status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// ---------------------------------------------------------------------------
// Live streams
// ---------------------------------------------------------------------------

type sseEvent struct {
	id    string
	event string
	data  string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.event != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}
	return bufio.NewReader(resp.Body)
}

func TestLiveBookmarks(t *testing.T) {
	srv, s := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	r := openStream(t, ts.URL+"/api/live/bookmarks")

	first := readEvent(t, r)
	if first.event != "snapshot" || first.data != "[]" || first.id != "1" {
		t.Fatalf("first event = %+v, want empty snapshot 1", first)
	}

	_, err := s.CreateBookmark(context.Background(), model.Bookmark{Slug: "flexbox", Title: "Flexbox", Domain: "css"})
	if err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}

	next := readEvent(t, r)
	var list []model.Bookmark
	if err := json.Unmarshal([]byte(next.data), &list); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(list) != 1 || list[0].Slug != "flexbox" {
		t.Errorf("snapshot = %+v, want the new bookmark", list)
	}
}

func TestLiveReadState(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	r := openStream(t, ts.URL+"/api/live/read-states/css/grid")

	var rs model.ReadState
	json.Unmarshal([]byte(readEvent(t, r).data), &rs)
	if rs.Status != model.StatusUnread {
		t.Fatalf("initial status = %q, want unread", rs.Status)
	}

	_, err := srv.Engine.MarkDone(context.Background(), "css", "grid")
	if err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	json.Unmarshal([]byte(readEvent(t, r).data), &rs)
	if rs.Status != model.StatusDone {
		t.Errorf("status after MarkDone = %q, want done", rs.Status)
	}
}
