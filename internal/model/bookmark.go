package model

// Bookmark is a saved document, unique per slug.
type Bookmark struct {
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Domain      string  `json:"domain"`
	Description *string `json:"description,omitempty"`
}

// Validate checks the required bookmark fields.
func (b Bookmark) Validate() error {
	return Required(
		Field{"slug", b.Slug},
		Field{"title", b.Title},
		Field{"domain", b.Domain},
	)
}

// Favorite is a liked document. Unlike bookmarks, favorites carry their own id.
type Favorite struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// Validate checks the required favorite fields.
func (f Favorite) Validate() error {
	return Required(
		Field{"slug", f.Slug},
		Field{"title", f.Title},
	)
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
