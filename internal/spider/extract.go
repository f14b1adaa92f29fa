package spider

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Extraction holds everything pulled from one HTML page.
type Extraction struct {
	// Links are the absolute URLs of every href and src found in the
	// document, resolved against the page URL and deduplicated.
	Links []string

	// Emails are addresses found in text, attribute values and HTML
	// comments, lowercased and deduplicated.
	Emails []string
}

// emailPattern is deliberately permissive; for reconnaissance a false
// positive is cheaper than a missed address.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Extract parses an HTML document and returns the links and email
// addresses it contains. Relative links are resolved against base;
// non-fetchable schemes (javascript, mailto, tel, data) are skipped,
// though mailto addresses still surface through email extraction.
func Extract(base *url.URL, body io.Reader) (*Extraction, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	result := &Extraction{}
	seenLinks := make(map[string]struct{})
	var text strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			for _, raw := range linkAttrs(n) {
				if strings.HasPrefix(strings.ToLower(raw), "mailto:") {
					text.WriteString(strings.TrimPrefix(raw, "mailto:"))
					text.WriteString(" ")
					continue
				}
				link := resolveLink(base, raw)
				if link == "" {
					continue
				}
				if _, ok := seenLinks[link]; ok {
					continue
				}
				seenLinks[link] = struct{}{}
				result.Links = append(result.Links, link)
			}
		case html.TextNode, html.CommentNode:
			// Comments routinely leak internal hostnames and
			// addresses; scan them like visible text.
			text.WriteString(n.Data)
			text.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Emails = extractEmails(text.String())
	return result, nil
}

// linkAttrs returns the URL-bearing attribute values of an element.
func linkAttrs(n *html.Node) []string {
	var key string
	switch n.Data {
	case "a", "link", "area":
		key = "href"
	case "script", "img", "iframe", "frame", "embed", "source":
		key = "src"
	case "form":
		key = "action"
	case "object":
		key = "data"
	default:
		return nil
	}
	for _, attr := range n.Attr {
		if attr.Key == key && attr.Val != "" {
			return []string{attr.Val}
		}
	}
	return nil
}

// resolveLink resolves href against the page URL and rejects
// non-fetchable schemes. Returns "" for links that cannot become URL
// events.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "tel:", "data:", "about:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func extractEmails(text string) []string {
	matches := emailPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var emails []string
	for _, m := range matches {
		m = strings.ToLower(m)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		emails = append(emails, m)
	}
	return emails
}
