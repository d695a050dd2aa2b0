package content

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// StubService serves a small canned catalogue (for development/testing).
type StubService struct {
	items []Item
	posts map[string]Post
}

// NewStubService returns a StubService with the built-in catalogue.
func NewStubService() *StubService {
	s := &StubService{posts: make(map[string]Post)}
	for _, d := range stubCatalogue {
		it := Item{
			ID:          d.domain + "-" + d.slug,
			Domain:      d.domain,
			Slug:        d.slug,
			Title:       d.title,
			Description: d.description,
			Tags:        d.tags,
			UpdatedAt:   d.updatedAt,
			Order:       d.order,
			Level:       1,
		}
		s.items = append(s.items, it)

		minutes := readingMinutes(d.body)
		s.posts[d.domain+"/"+d.slug] = Post{
			Meta: PostMeta{
				ID:          it.ID,
				Domain:      it.Domain,
				Slug:        it.Slug,
				Title:       it.Title,
				Description: it.Description,
				Tags:        it.Tags,
				UpdatedAt:   it.UpdatedAt,
				Order:       it.Order,
				Level:       it.Level,
				References:  d.references,
				Derived:     &Derived{ReadingMinutes: &minutes},
			},
			Content: d.body,
		}
	}
	return s
}

func (s *StubService) RootManifest(_ context.Context) (*RootManifest, error) {
	return &RootManifest{
		Version:     1,
		GeneratedAt: stubGeneratedAt,
		Items:       append([]Item(nil), s.items...),
	}, nil
}

func (s *StubService) DomainManifest(_ context.Context, domain string) (*DomainManifest, error) {
	m := &DomainManifest{
		Version:     1,
		GeneratedAt: stubGeneratedAt,
		Domain:      domain,
		Sections:    []Section{{ID: "basics", Title: "Basics", Order: 1}},
	}
	for _, it := range s.items {
		if it.Domain == domain {
			m.Items = append(m.Items, it)
		}
	}
	if len(m.Items) == 0 {
		return nil, &HTTPError{StatusCode: http.StatusNotFound, URL: "stub://domains/" + domain}
	}
	return m, nil
}

func (s *StubService) Post(_ context.Context, domain, slug string) (*Post, error) {
	p, ok := s.posts[domain+"/"+slug]
	if !ok {
		return nil, &HTTPError{StatusCode: http.StatusNotFound, URL: fmt.Sprintf("stub://posts/%s/%s", domain, slug)}
	}
	return &p, nil
}

func (s *StubService) Search(_ context.Context, p SearchParams) (*SearchResult, error) {
	p = p.withDefaults()
	q := strings.ToLower(strings.TrimSpace(p.Query))

	var hits []Item
	for _, it := range s.items {
		if p.Domain != "" && it.Domain != p.Domain {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(it.Description), q) {
			continue
		}
		if !hasAllTags(it.Tags, p.Tags) {
			continue
		}
		hits = append(hits, it)
	}

	switch p.Sort {
	case SortOrderAsc:
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Order < hits[j].Order })
	default:
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].UpdatedAt > hits[j].UpdatedAt })
	}

	res := &SearchResult{Total: len(hits), Page: p.Page, PageSize: p.PageSize, Items: []SearchItem{}}
	start := (p.Page - 1) * p.PageSize
	if start >= len(hits) {
		return res, nil
	}
	end := min(start+p.PageSize, len(hits))
	for _, it := range hits[start:end] {
		res.Items = append(res.Items, SearchItem{
			ID:          it.ID,
			Title:       it.Title,
			Slug:        it.Slug,
			Description: it.Description,
			Domain:      it.Domain,
			Tags:        it.Tags,
			CoverImage:  it.CoverImage,
		})
	}
	return res, nil
}

func (s *StubService) Domains(_ context.Context) (*DomainList, error) {
	byDomain := make(map[string]*DomainSummary)
	var order []string
	for _, it := range s.items {
		d, ok := byDomain[it.Domain]
		if !ok {
			d = &DomainSummary{Domain: it.Domain}
			byDomain[it.Domain] = d
			order = append(order, it.Domain)
		}
		d.Count++
		if it.UpdatedAt > d.LatestUpdatedAt {
			d.LatestUpdatedAt = it.UpdatedAt
		}
	}
	list := &DomainList{}
	for _, name := range order {
		list.Items = append(list.Items, *byDomain[name])
	}
	return list, nil
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// readingMinutes estimates reading time at 200 words per minute, at least 1.
func readingMinutes(body string) int {
	return max(1, (len(strings.Fields(body))+199)/200)
}

const stubGeneratedAt = "2026-01-01T00:00:00Z"

type stubDoc struct {
	domain, slug, title, description string
	tags                             []string
	updatedAt                        string
	order                            int
	references                       []Reference
	body                             string
}

var stubCatalogue = []stubDoc{
	{
		domain: "html", slug: "what-is-html", title: "What is HTML",
		description: "The markup language every web page is built on.",
		tags:        []string{"basics"}, updatedAt: "2026-01-03T00:00:00Z", order: 1,
		references: []Reference{{Title: "MDN: HTML basics", URL: "https://developer.mozilla.org/en-US/docs/Learn/Getting_started_with_the_web/HTML_basics"}},
		body:       "# What is HTML\n\nHTML describes the structure of a web page with elements such as headings, paragraphs and links.\n",
	},
	{
		domain: "html", slug: "semantic-elements", title: "Semantic elements",
		description: "header, nav, main and friends.",
		tags:        []string{"basics", "a11y"}, updatedAt: "2026-01-02T00:00:00Z", order: 2,
		body: "# Semantic elements\n\nSemantic elements say what their content is, which helps assistive technology.\n",
	},
	{
		domain: "css", slug: "flexbox", title: "Flexbox",
		description: "One-dimensional layout with flex containers.",
		tags:        []string{"layout"}, updatedAt: "2026-01-05T00:00:00Z", order: 1,
		body: "# Flexbox\n\nA flex container lays its children out along a main axis.\n",
	},
	{
		domain: "css", slug: "grid", title: "Grid",
		description: "Two-dimensional layout with rows and columns.",
		tags:        []string{"layout"}, updatedAt: "2026-01-04T00:00:00Z", order: 2,
		body: "# Grid\n\nCSS grid places items into rows and columns at once.\n",
	},
	{
		domain: "javascript", slug: "closures", title: "Closures",
		description: "Functions that remember their scope.",
		tags:        []string{"functions"}, updatedAt: "2026-01-06T00:00:00Z", order: 1,
		body: "# Closures\n\nA closure is a function bundled with references to its surrounding state.\n",
	},
}
