package content

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestStubService_Manifests(t *testing.T) {
	s := NewStubService()
	ctx := context.Background()

	root, err := s.RootManifest(ctx)
	if err != nil || len(root.Items) == 0 {
		t.Fatalf("RootManifest = (%v, %v)", root, err)
	}

	m, err := s.DomainManifest(ctx, "css")
	if err != nil {
		t.Fatalf("DomainManifest: %v", err)
	}
	for _, it := range m.Items {
		if it.Domain != "css" {
			t.Errorf("item %s from domain %s in css manifest", it.Slug, it.Domain)
		}
	}

	_, err = s.DomainManifest(ctx, "cobol")
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		t.Errorf("unknown domain err = %v, want 404", err)
	}
}

func TestStubService_Post(t *testing.T) {
	s := NewStubService()
	p, err := s.Post(context.Background(), "html", "what-is-html")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if p.Meta.Title != "What is HTML" || p.Content == "" {
		t.Errorf("post = %+v", p)
	}
	if minutes, ok := p.Meta.Minutes(); !ok || minutes < 1 {
		t.Errorf("Minutes = (%d, %v)", minutes, ok)
	}
	if len(p.Meta.References) == 0 {
		t.Error("expected references")
	}

	if _, err := s.Post(context.Background(), "html", "nope"); err == nil {
		t.Error("expected not found")
	}
}

func TestStubService_Search(t *testing.T) {
	s := NewStubService()
	ctx := context.Background()

	res, err := s.Search(ctx, SearchParams{Domain: "css"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 || res.Page != 1 || res.PageSize != 20 {
		t.Fatalf("result = %+v", res)
	}
	// updatedAt_desc: flexbox (01-05) before grid (01-04)
	if res.Items[0].Slug != "flexbox" {
		t.Errorf("first = %s, want flexbox", res.Items[0].Slug)
	}

	res, _ = s.Search(ctx, SearchParams{Domain: "css", Sort: SortOrderAsc, PageSize: 1, Page: 2})
	if res.Total != 2 || len(res.Items) != 1 || res.Items[0].Slug != "grid" {
		t.Errorf("page 2 = %+v", res)
	}

	res, _ = s.Search(ctx, SearchParams{Query: "CLOSURE"})
	if res.Total != 1 || res.Items[0].Slug != "closures" {
		t.Errorf("query search = %+v", res)
	}

	res, _ = s.Search(ctx, SearchParams{Tags: []string{"basics", "a11y"}})
	if res.Total != 1 || res.Items[0].Slug != "semantic-elements" {
		t.Errorf("tag search = %+v", res)
	}

	res, _ = s.Search(ctx, SearchParams{Page: 99})
	if len(res.Items) != 0 || res.Total == 0 {
		t.Errorf("out of range page = %+v", res)
	}
}

func TestStubService_Domains(t *testing.T) {
	list, err := NewStubService().Domains(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 3 {
		t.Fatalf("domains = %+v", list.Items)
	}
	if list.Items[0].Domain != "html" || list.Items[0].Count != 2 {
		t.Errorf("first = %+v", list.Items[0])
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"html":       "HTML",
		"css":        "CSS",
		"react":      "REACT",
		"web":        "WEB",
		"javascript": "JavaScript",
		"typescript": "TypeScript",
		"glossary":   "용어사전",
		"cobol":      "",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShareURL(t *testing.T) {
	got := ShareURL("https://recodelog.com/", "html", "what is html")
	if got != "https://recodelog.com/learn/html/what%20is%20html" {
		t.Errorf("ShareURL = %s", got)
	}
}
