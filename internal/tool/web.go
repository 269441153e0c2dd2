package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// PageResult is the payload of web.get.
type PageResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SearchHit is one result from web.search.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchResult is the payload of web.search.
type WebSearchResult struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

const ddgSearchURL = "https://html.duckduckgo.com/html/"

// RegisterWeb registers the web tools.
func RegisterWeb(reg *Registry, ws Workspace) {
	reg.Register(Definition{
		Name:        "web.get",
		Description: "Fetch a URL and extract readable page text.",
		Schema: Schema{Params: map[string]Param{
			"url": {Type: TypeString, Required: true},
		}},
		Handler: webGet(ws),
	})
	reg.Register(Definition{
		Name:        "web.search",
		Description: "Search the web and return titles, URLs, and snippets.",
		Schema: Schema{Params: map[string]Param{
			"query": {Type: TypeString, Required: true},
			"limit": {Type: TypeInt},
		}},
		Handler: webSearch(ws),
	})
}

func webGet(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		target := stringArg(args, "url")
		if strings.HasPrefix(target, "//") {
			target = "https:" + target
		}
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, errors.New("url must be http or https")
		}

		body, err := fetch(ctx, ws, target)
		if err != nil {
			return nil, err
		}

		doc, err := html.Parse(strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse page: %w", err)
		}

		title, text := extractReadable(doc)
		if len(text) > ws.maxWebChars() {
			text = text[:ws.maxWebChars()]
		}
		return PageResult{URL: target, Title: title, Text: text}, nil
	}
}

func webSearch(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query := strings.Join(strings.Fields(stringArg(args, "query")), " ")
		if query == "" {
			return nil, errors.New("query must not be empty")
		}
		limit := intArg(args, "limit", 5)
		if limit < 1 {
			limit = 1
		}

		body, err := fetch(ctx, ws, ddgSearchURL+"?q="+url.QueryEscape(query))
		if err != nil {
			return nil, err
		}

		doc, err := html.Parse(strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse results: %w", err)
		}

		hits := extractSearchHits(doc, limit)
		return WebSearchResult{Query: query, Results: hits}, nil
	}
}

func fetch(ctx context.Context, ws Workspace, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ws.UserAgent)

	resp, err := ws.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}

	// Pages larger than 2 MiB are cut off; extraction truncates further.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// skippedTags are elements whose text content is noise for extraction.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "aside": true,
}

var collapseSpaces = regexp.MustCompile(`\s{2,}`)

// extractReadable walks the document collecting the title and visible text.
func extractReadable(doc *html.Node) (title, text string) {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedTags[n.Data] {
				return
			}
			if n.Data == "title" && title == "" {
				title = strings.TrimSpace(nodeText(n))
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "tr":
				b.WriteString("\n")
			}
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(collapseSpaces.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return title, strings.Join(lines, "\n")
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		} else {
			b.WriteString(nodeText(c))
		}
	}
	return b.String()
}

// extractSearchHits parses DuckDuckGo HTML results: each hit is a div with a
// "result" class containing a result__a link and a result__snippet element.
func extractSearchHits(doc *html.Node, limit int) []SearchHit {
	hits := []SearchHit{}
	seen := map[string]bool{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if hit, ok := parseResultCard(n); ok && !seen[hit.URL] {
				seen[hit.URL] = true
				hits = append(hits, hit)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hits
}

func parseResultCard(card *html.Node) (SearchHit, bool) {
	var hit SearchHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a") && hit.URL == "":
				hit.URL = normalizeDDGURL(attrValue(n, "href"))
				hit.Title = strings.TrimSpace(nodeText(n))
			case hasClass(n, "result__snippet") && hit.Snippet == "":
				hit.Snippet = strings.TrimSpace(collapseSpaces.ReplaceAllString(nodeText(n), " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(card)
	return hit, hit.URL != "" && hit.Title != ""
}

// normalizeDDGURL unwraps DuckDuckGo redirect links of the form
// //duckduckgo.com/l/?uddg=<encoded>.
func normalizeDDGURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.Contains(href, "duckduckgo.com/l/") || strings.Contains(href, "/l/?") {
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				if decoded, err := url.QueryUnescape(target); err == nil {
					return decoded
				}
				return target
			}
		}
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
