package content

import (
	"net/url"
	"strings"
)

// DisplayName returns the label shown for a domain, or "" for unknown domains.
func DisplayName(domain string) string {
	switch domain {
	case "html", "css", "react", "web":
		return strings.ToUpper(domain)
	case "javascript":
		return "JavaScript"
	case "typescript":
		return "TypeScript"
	case "glossary":
		return "용어사전"
	default:
		return ""
	}
}

// ShareURL builds the public link to a post on the website.
func ShareURL(baseURL, domain, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/learn/" + url.PathEscape(domain) + "/" + url.PathEscape(slug)
}
