// Package news looks up recent headlines for a prompt through the
// newsdata.io keyword search API.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kalambet/juskvi/internal/fault"
)

const (
	// DefaultBaseURL is the newsdata.io API root.
	DefaultBaseURL = "https://newsdata.io/api/1"
	// DefaultTimeout bounds one lookup.
	DefaultTimeout = 3 * time.Second
	// DefaultKeyword is searched when the prompt has no words.
	DefaultKeyword = "tech"
	// DefaultLanguage restricts results to one language.
	DefaultLanguage = "en"

	// NoResults is the digest returned when the search matched nothing.
	NoResults = "No News Found."

	maxHeadlines = 3
	digestLabel  = "NEWS:\n"
)

// Config configures a Client. Zero fields take the package defaults.
type Config struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	Language       string
	DefaultKeyword string
}

// Client searches newsdata.io. A Client with no API key is valid and
// reports fault.ErrUnconfigured from Lookup without making a request.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.DefaultKeyword == "" {
		cfg.DefaultKeyword = DefaultKeyword
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// Keyword returns the search keyword for query: its first
// whitespace-delimited word, or the default keyword when there is none.
func (c *Client) Keyword(query string) string {
	if fields := strings.Fields(query); len(fields) > 0 {
		return fields[0]
	}
	return c.cfg.DefaultKeyword
}

type searchResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type article struct {
	Title string `json:"title"`
}

// Lookup searches headlines for the first word of query and returns a
// digest of up to three titles, or NoResults when nothing matched.
func (c *Client) Lookup(ctx context.Context, query string) (string, error) {
	if !c.Configured() {
		return "", fault.ErrUnconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	titles, err := c.search(ctx, c.Keyword(query))
	if err != nil {
		c.logger.Warn("news lookup failed", "error", err)
		return "", fault.Transient(err)
	}
	if len(titles) == 0 {
		return NoResults, nil
	}
	if len(titles) > maxHeadlines {
		titles = titles[:maxHeadlines]
	}
	return digestLabel + strings.Join(titles, "\n"), nil
}

func (c *Client) search(ctx context.Context, keyword string) ([]string, error) {
	q := url.Values{}
	q.Set("apikey", c.cfg.APIKey)
	q.Set("q", keyword)
	q.Set("language", c.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/news?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if sr.Status != "" && sr.Status != "success" {
		return nil, fmt.Errorf("search status %q: %s", sr.Status, string(sr.Results))
	}
	if len(sr.Results) == 0 || string(sr.Results) == "null" {
		return nil, nil
	}

	var articles []article
	if err := json.Unmarshal(sr.Results, &articles); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}

	titles := make([]string, 0, len(articles))
	for _, a := range articles {
		titles = append(titles, plainText(a.Title))
	}
	return titles, nil
}

// plainText strips markup from a headline and decodes HTML entities.
func plainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
