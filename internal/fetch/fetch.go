// Package fetch implements the fetch_webpage tool: download a URL and
// reduce its HTML to readable text the model can consume.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/midorin-Linux/NekoAI/internal/httpkit"
	"github.com/midorin-Linux/NekoAI/internal/tools"
)

// maxBodyBytes caps the downloaded response body (5 MB).
const maxBodyBytes int64 = 5 * 1024 * 1024

// defaultMaxChars limits extracted text when the model doesn't ask for
// a specific amount.
const defaultMaxChars = 20000

// Fetcher downloads pages and extracts readable text.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher with shared-transport defaults.
func New() *Fetcher {
	return &Fetcher{
		client: httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
	}
}

// Fetch downloads rawURL and returns (title, readable text). Non-HTML
// text content comes back as-is; binary content is an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (string, string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpkit.DrainAndClose(resp.Body, 1024)
		return "", "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	var title, content string
	switch {
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		title, content = extractHTML(string(body))
	case strings.HasPrefix(contentType, "text/"), utf8.Valid(body):
		content = string(body)
	default:
		return "", "", fmt.Errorf("unsupported content type %s", contentType)
	}

	if len(content) > maxChars {
		content = truncateUTF8(content, maxChars)
	}
	return title, content, nil
}

// RegisterTool adds the fetch_webpage tool backed by f.
func RegisterTool(r *tools.Registry, f *Fetcher) {
	r.Register(&tools.Tool{
		Name:        "fetch_webpage",
		Description: "Fetch a web page and return its readable text content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "URL to fetch.",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": "Maximum characters to return (default 20000).",
				},
			},
			"required": []string{"url"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return "", fmt.Errorf("url is required")
			}
			maxChars := 0
			if mc, ok := args["max_chars"].(float64); ok {
				maxChars = int(mc)
			}

			title, content, err := f.Fetch(ctx, url, maxChars)
			if err != nil {
				return "", err
			}
			if title != "" {
				return fmt.Sprintf("Title: %s\n\n%s", title, content), nil
			}
			return content, nil
		},
	})
}

// truncateUTF8 cuts s to at most maxChars runes without splitting a
// multi-byte character.
func truncateUTF8(s string, maxChars int) string {
	count := 0
	for i := range s {
		if count >= maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
