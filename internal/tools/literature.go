package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	fetchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects   = 5
)

// validateURL checks that url is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}

// ---------------------------------------------------------------------------
// FetchWebpageTool
// ---------------------------------------------------------------------------

// FetchWebpageTool fetches a URL and extracts readable content, for reading
// papers, database pages, and documentation the agent is pointed at.
type FetchWebpageTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewFetchWebpageTool creates a FetchWebpageTool. maxChars defaults to 50000.
func NewFetchWebpageTool(maxChars int) *FetchWebpageTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &FetchWebpageTool{maxChars: maxChars, httpClient: client}
}

func (t *FetchWebpageTool) Name() string { return "fetch_webpage" }
func (t *FetchWebpageTool) Description() string {
	return "Fetch a URL and extract its readable content (HTML is converted to markdown/text)."
}
func (t *FetchWebpageTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "URL to fetch"
			},
			"extractMode": {
				"type": "string",
				"enum": ["markdown", "text"],
				"default": "markdown"
			},
			"maxChars": {
				"type": "integer",
				"minimum": 100
			}
		},
		"required": ["url"]
	}`)
}

func (t *FetchWebpageTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return "Error: url is required", nil
	}

	if err := validateURL(rawURL); err != nil {
		result, _ := json.Marshal(map[string]any{
			"error": fmt.Sprintf("URL validation failed: %v", err),
			"url":   rawURL,
		})
		return string(result), nil
	}

	extractMode := "markdown"
	if m, ok := params["extractMode"].(string); ok && m != "" {
		extractMode = m
	}
	maxChars := t.maxChars
	if mc := intParam(params, "maxChars", 0); mc > 0 {
		maxChars = mc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		out, _ := json.Marshal(map[string]any{"error": err.Error(), "url": rawURL})
		return string(out), nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		out, _ := json.Marshal(map[string]any{"error": err.Error(), "url": rawURL})
		return string(out), nil
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		out, _ := json.Marshal(map[string]any{"error": err.Error(), "url": rawURL})
		return string(out), nil
	}

	ctype := resp.Header.Get("Content-Type")
	finalURL := resp.Request.URL.String()

	var text, extractor string

	switch {
	case strings.Contains(ctype, "application/json"):
		var jsonData any
		if err := json.Unmarshal(bodyBytes, &jsonData); err == nil {
			formatted, _ := json.MarshalIndent(jsonData, "", "  ")
			text = string(formatted)
		} else {
			text = string(bodyBytes)
		}
		extractor = "json"

	case strings.Contains(ctype, "text/html") || isHTMLPrefix(bodyBytes):
		parsedURL, _ := url.Parse(rawURL)
		article, err := readability.FromReader(bytes.NewReader(bodyBytes), parsedURL)
		if err == nil {
			if extractMode == "markdown" {
				text = htmlToMarkdown(article.Content)
			} else {
				text = stripHTMLTags(article.Content)
			}
			if article.Title != "" {
				text = "# " + article.Title + "\n\n" + text
			}
		} else {
			// Fallback: just strip tags
			text = stripHTMLTags(string(bodyBytes))
		}
		extractor = "readability"

	default:
		text = string(bodyBytes)
		extractor = "raw"
	}

	truncated := len(text) > maxChars
	if truncated {
		text = text[:maxChars]
	}

	out, _ := json.Marshal(map[string]any{
		"url":       rawURL,
		"finalUrl":  finalURL,
		"status":    resp.StatusCode,
		"extractor": extractor,
		"truncated": truncated,
		"length":    len(text),
		"text":      text,
	})
	return string(out), nil
}

// isHTMLPrefix returns true if the body starts with an HTML declaration.
func isHTMLPrefix(b []byte) bool {
	n := len(b)
	if n > 256 {
		n = 256
	}
	prefix := strings.ToLower(strings.TrimSpace(string(b[:n])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

// ---------------------------------------------------------------------------
// SearchLiteratureTool
// ---------------------------------------------------------------------------

// SearchLiteratureTool queries the Europe PMC REST search API. Europe PMC is
// keyless, so the tool works out of the box.
type SearchLiteratureTool struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// NewSearchLiteratureTool creates a SearchLiteratureTool.
// baseURL overrides the Europe PMC endpoint when non-empty (tests point it at
// httptest); maxResults defaults to 5.
func NewSearchLiteratureTool(baseURL string, maxResults int) *SearchLiteratureTool {
	if baseURL == "" {
		baseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchLiteratureTool{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *SearchLiteratureTool) Name() string { return "search_literature" }
func (t *SearchLiteratureTool) Description() string {
	return "Search the scientific literature (Europe PMC) for papers. Returns titles, authors, journals, years, and PMIDs."
}
func (t *SearchLiteratureTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Search query, e.g. \"EGFR kinase inhibitor resistance\""
			},
			"limit": {
				"type": "integer",
				"description": "Max results (1-25)"
			}
		},
		"required": ["query"]
	}`)
}

func (t *SearchLiteratureTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: query is required", nil
	}
	limit := intParam(params, "limit", t.maxResults)
	if limit < 1 {
		limit = 1
	}
	if limit > 25 {
		limit = 25
	}

	reqURL := fmt.Sprintf("%s/search?%s", t.baseURL, url.Values{
		"query":    {query},
		"format":   {"json"},
		"pageSize": {fmt.Sprintf("%d", limit)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build literature request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("literature search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("literature search returned status %d", resp.StatusCode)
	}

	var data struct {
		ResultList struct {
			Result []struct {
				Title        string `json:"title"`
				AuthorString string `json:"authorString"`
				JournalTitle string `json:"journalTitle"`
				PubYear      string `json:"pubYear"`
				PMID         string `json:"pmid"`
				DOI          string `json:"doi"`
			} `json:"result"`
		} `json:"resultList"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("parse literature response: %w", err)
	}

	results := data.ResultList.Result
	if len(results) == 0 {
		return fmt.Sprintf("No publications found for %q.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d publications for %q:\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSuffix(r.Title, "."))
		if r.AuthorString != "" {
			fmt.Fprintf(&sb, "   %s\n", r.AuthorString)
		}
		var meta []string
		if r.JournalTitle != "" {
			meta = append(meta, r.JournalTitle)
		}
		if r.PubYear != "" {
			meta = append(meta, r.PubYear)
		}
		if r.PMID != "" {
			meta = append(meta, "PMID: "+r.PMID)
		}
		if r.DOI != "" {
			meta = append(meta, "doi:"+r.DOI)
		}
		if len(meta) > 0 {
			fmt.Fprintf(&sb, "   %s\n", strings.Join(meta, " · "))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// ---------------------------------------------------------------------------
// HTML → text/markdown helpers
// ---------------------------------------------------------------------------

var (
	reScript    = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle     = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags      = regexp.MustCompile(`<[^>]+>`)
	reSpaces    = regexp.MustCompile(`[ \t]+`)
	reNewlines  = regexp.MustCompile(`\n{3,}`)
	reLinks     = regexp.MustCompile(`(?is)<a\s+[^>]*href=["']([^"']+)["'][^>]*>([\s\S]*?)</a>`)
	reHeadings  = regexp.MustCompile(`(?is)<h([1-6])[^>]*>([\s\S]*?)</h[1-6]>`)
	reListItems = regexp.MustCompile(`(?is)<li[^>]*>([\s\S]*?)</li>`)
	reBlockEnd  = regexp.MustCompile(`(?is)</(p|div|section|article)>`)
	reLineBreak = regexp.MustCompile(`(?is)<(br|hr)\s*/?>`)
)

// stripHTMLTags removes all HTML tags and normalizes whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// htmlToMarkdown converts HTML to a simple markdown representation.
func htmlToMarkdown(htmlText string) string {
	// Links
	text := reLinks.ReplaceAllStringFunc(htmlText, func(m string) string {
		parts := reLinks.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		return fmt.Sprintf("[%s](%s)", stripHTMLTags(parts[2]), parts[1])
	})
	// Headings
	text = reHeadings.ReplaceAllStringFunc(text, func(m string) string {
		parts := reHeadings.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		level := int(parts[1][0] - '0')
		return fmt.Sprintf("\n%s %s\n", strings.Repeat("#", level), stripHTMLTags(parts[2]))
	})
	// List items
	text = reListItems.ReplaceAllStringFunc(text, func(m string) string {
		parts := reListItems.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return "\n- " + stripHTMLTags(parts[1])
	})
	// Block endings → paragraph break
	text = reBlockEnd.ReplaceAllString(text, "\n\n")
	// Line breaks
	text = reLineBreak.ReplaceAllString(text, "\n")
	return normalizeWhitespace(stripHTMLTags(text))
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
