package content

// Item is one document entry of a manifest.
type Item struct {
	ID          string   `json:"id"`
	Domain      string   `json:"domain"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	UpdatedAt   string   `json:"updatedAt"`
	CoverImage  string   `json:"coverImage"`
	Order       int      `json:"order"`
	Level       int      `json:"level"`
}

// RootManifest lists every document across domains.
type RootManifest struct {
	Version     int    `json:"version"`
	GeneratedAt string `json:"generatedAt"`
	Items       []Item `json:"items"`
}

// Domains returns the distinct domains of the manifest in first-seen order.
func (m *RootManifest) Domains() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range m.Items {
		if it.Domain == "" || seen[it.Domain] {
			continue
		}
		seen[it.Domain] = true
		out = append(out, it.Domain)
	}
	return out
}

// Section groups a domain's items for display.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// DomainManifest lists the documents of one domain.
type DomainManifest struct {
	Version     int       `json:"version"`
	GeneratedAt string    `json:"generatedAt"`
	Domain      string    `json:"domain"`
	Sections    []Section `json:"sections"`
	Items       []Item    `json:"items"`
}

// Reference is an external link cited by a post.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Note  string `json:"note,omitempty"`
}

// Derived holds values the content service computes from the post body.
type Derived struct {
	ReadingMinutes *int `json:"readingMinutes,omitempty"`
}

// PostMeta is the front matter of a post.
type PostMeta struct {
	ID             string      `json:"id"`
	Domain         string      `json:"domain"`
	Slug           string      `json:"slug"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	UpdatedAt      string      `json:"updatedAt,omitempty"`
	CoverImage     string      `json:"coverImage,omitempty"`
	Order          int         `json:"order"`
	Level          int         `json:"level"`
	References     []Reference `json:"references,omitempty"`
	Derived        *Derived    `json:"derived,omitempty"`
	ReadingMinutes *int        `json:"readingMinutes,omitempty"`
}

// Minutes returns the estimated reading time, preferring the derived value.
// ok is false when the service reported none.
func (m PostMeta) Minutes() (minutes int, ok bool) {
	if m.Derived != nil && m.Derived.ReadingMinutes != nil {
		return *m.Derived.ReadingMinutes, true
	}
	if m.ReadingMinutes != nil {
		return *m.ReadingMinutes, true
	}
	return 0, false
}

// Post is a document with its markdown body.
type Post struct {
	Meta    PostMeta `json:"meta"`
	Content string   `json:"content"`
}

// Search sort orders.
const (
	SortUpdatedDesc = "updatedAt_desc"
	SortOrderAsc    = "order_asc"
)

// SearchParams are the query parameters of a post search.
type SearchParams struct {
	Domain   string
	Query    string
	Tags     []string
	Sort     string
	Page     int
	PageSize int
}

// withDefaults fills in the default sort and paging.
func (p SearchParams) withDefaults() SearchParams {
	if p.Sort == "" {
		p.Sort = SortUpdatedDesc
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	return p
}

// SearchItem is one search hit.
type SearchItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Domain      string   `json:"domain"`
	Tags        []string `json:"tags"`
	CoverImage  string   `json:"coverImage"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Items    []SearchItem `json:"items"`
}

// DomainSummary describes one domain in the domain list.
type DomainSummary struct {
	Domain          string `json:"domain"`
	Count           int    `json:"count"`
	LatestUpdatedAt string `json:"latestUpdatedAt"`
	Image           string `json:"image"`
}

// DomainList is the list of available domains.
type DomainList struct {
	Items []DomainSummary `json:"items"`
}
