package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/net/html"
)

func TestWebGetExtractsText(t *testing.T) {
	page := `<html><head><title>Example Page</title>
<script>var x = 1;</script><style>body{}</style></head>
<body><nav>menu menu</nav>
<h1>Heading</h1><p>First paragraph.</p><p>Second paragraph.</p>
<footer>fine print</footer></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	reg := NewRegistry()
	RegisterWeb(reg, NewWorkspace(t.TempDir(), nil))

	out, err := reg.Dispatch(context.Background(), CallRequest{
		Name: "web.get", Args: map[string]any{"url": srv.URL},
	})
	require.NoError(t, err)

	pr := out.(PageResult)
	assert.Equal(t, "Example Page", pr.Title)
	assert.Contains(t, pr.Text, "First paragraph.")
	assert.Contains(t, pr.Text, "Heading")
	assert.NotContains(t, pr.Text, "var x")
	assert.NotContains(t, pr.Text, "menu menu")
	assert.NotContains(t, pr.Text, "fine print")
}

func TestWebGetRejectsNonHTTP(t *testing.T) {
	reg := NewRegistry()
	RegisterWeb(reg, NewWorkspace(t.TempDir(), nil))

	_, err := reg.Dispatch(context.Background(), CallRequest{
		Name: "web.get", Args: map[string]any{"url": "file:///etc/passwd"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http")
}

func TestWebGetTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>" + strings.Repeat("word ", 5000) + "</p></body></html>"))
	}))
	defer srv.Close()

	reg := NewRegistry()
	ws := NewWorkspace(t.TempDir(), nil)
	ws.MaxWebChars = 100
	RegisterWeb(reg, ws)

	out, err := reg.Dispatch(context.Background(), CallRequest{
		Name: "web.get", Args: map[string]any{"url": srv.URL},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.(PageResult).Text), 100)
}

const ddgFixture = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F">The Go Programming Language</a></h2>
  <a class="result__snippet">Build simple, secure, scalable systems with Go.</a>
</div>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="https://go.dev/doc/">Documentation</a></h2>
  <a class="result__snippet">Learn how to use Go.</a>
</div>
<div class="result"><span>no link here</span></div>
</body></html>`

func TestWebSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		w.Write([]byte(ddgFixture))
	}))
	defer srv.Close()

	doc, err := html.Parse(strings.NewReader(ddgFixture))
	require.NoError(t, err)

	hits := extractSearchHits(doc, 5)
	require.Len(t, hits, 2)
	assert.Equal(t, "The Go Programming Language", hits[0].Title)
	assert.Equal(t, "https://go.dev/", hits[0].URL)
	assert.Equal(t, "Build simple, secure, scalable systems with Go.", hits[0].Snippet)
	assert.Equal(t, "https://go.dev/doc/", hits[1].URL)
}

func TestExtractSearchHitsLimit(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(ddgFixture))
	require.NoError(t, err)
	assert.Len(t, extractSearchHits(doc, 1), 1)
}

func TestNormalizeDDGURL(t *testing.T) {
	assert.Equal(t, "https://go.dev/", normalizeDDGURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F"))
	assert.Equal(t, "https://example.com", normalizeDDGURL("//example.com"))
	assert.Equal(t, "https://plain.example", normalizeDDGURL("https://plain.example"))
	assert.Equal(t, "", normalizeDDGURL(""))
}
