package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hemolens/hemolens/internal/core/domain"
)

// NewReferenceLookupTool creates the web search capability used by the
// medical interpretation stage to pull external guideline citations.
// Brave Search is used when an API key is configured, with DuckDuckGo HTML
// scraping as the fallback.
func NewReferenceLookupTool() *domain.Tool {
	return &domain.Tool{
		Name: domain.ToolReferenceLookup,
		Description: "Searches the web for recent clinical guidelines and studies. " +
			"Returns top results with titles, snippets, and URLs.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query (e.g., 'low hemoglobin clinical guidelines').",
				},
			},
			Required: []string{"query"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			query, ok := params["query"].(string)
			if !ok || query == "" {
				return "", fmt.Errorf("query is required")
			}

			var (
				results []referenceResult
				err     error
			)
			if apiKey := os.Getenv("BRAVE_SEARCH_API_KEY"); apiKey != "" {
				results, err = searchBrave(ctx, query, apiKey)
				if err == nil {
					return formatReferenceResults(results), nil
				}
				// fall through to DuckDuckGo
			}

			results, err = searchDuckDuckGo(ctx, query)
			if err != nil {
				return "", err
			}
			return formatReferenceResults(results), nil
		},
	}
}

type referenceResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func formatReferenceResults(results []referenceResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return b.String()
}

func searchBrave(ctx context.Context, query string, apiKey string) ([]referenceResult, error) {
	reqURL := "https://api.search.brave.com/res/v1/web/search?q=" + url.QueryEscape(query) + "&count=5"
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", apiKey)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave api error: %d", resp.StatusCode)
	}

	var braveResp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				Url         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&braveResp); err != nil {
		return nil, err
	}

	var results []referenceResult
	for _, r := range braveResp.Web.Results {
		results = append(results, referenceResult{
			Title:   r.Title,
			Link:    r.Url,
			Snippet: r.Description,
		})
	}
	return results, nil
}

// Result title link: <a class="result__a" href="(url)">(title)</a>
var ddgLinkRe = regexp.MustCompile(`<a[^>]+class="[^"]*result__a[^"]*"[^>]+href="([^"]+)"[^>]*>([^<]+)</a>`)

// Snippet: <a class="result__snippet" ...>(text)</a>
var ddgSnippetRe = regexp.MustCompile(`<a[^>]+class="[^"]*result__snippet[^"]*"[^>]*>([^<]+)</a>`)

func searchDuckDuckGo(ctx context.Context, query string) ([]referenceResult, error) {
	// html.duckduckgo.com serves the lighter non-JS version
	reqURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ddg error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	results := parseDuckDuckGoResults(string(body))
	if len(results) == 0 {
		return nil, fmt.Errorf("no results found on DuckDuckGo (layout likely changed or blocked)")
	}
	return results, nil
}

func parseDuckDuckGoResults(html string) []referenceResult {
	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, 10)
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, 10)

	var results []referenceResult
	for i, match := range linkMatches {
		if i >= 5 {
			break
		}

		rawLink := match[1]
		title := match[2]

		// Decode DDG redirect links (//duckduckgo.com/l/?uddg=...)
		decodedLink := rawLink
		if strings.Contains(rawLink, "uddg=") {
			if u, err := url.Parse(rawLink); err == nil {
				if val := u.Query().Get("uddg"); val != "" {
					decodedLink = val
				}
			}
		}

		snippet := ""
		if i < len(snippetMatches) {
			snippet = snippetMatches[i][1]
		}

		title = strings.TrimSpace(strings.NewReplacer("<b>", "", "</b>", "").Replace(title))
		snippet = strings.TrimSpace(strings.NewReplacer("<b>", "", "</b>", "").Replace(snippet))

		if title != "" && decodedLink != "" {
			results = append(results, referenceResult{
				Title:   title,
				Link:    decodedLink,
				Snippet: snippet,
			})
		}
	}
	return results
}
