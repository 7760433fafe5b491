package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	// DefaultPineconeIndex is the index verdicts are stored in.
	DefaultPineconeIndex = "synthesis-memory"
	// DefaultControlURL is the Pinecone control plane used to resolve index hosts.
	DefaultControlURL = "https://api.pinecone.io"

	pineconeAPIVersion = "2025-01"
	metadataTextKey    = "text"
	maxPineconeError   = 4 << 10
)

// Compile-time check that PineconeIndex implements Index.
var _ Index = (*PineconeIndex)(nil)

// PineconeConfig configures a PineconeIndex.
type PineconeConfig struct {
	APIKey    string
	IndexName string
	// Host is the index data-plane host. Empty means resolve it from
	// IndexName on first use.
	Host       string
	ControlURL string
}

// PineconeIndex talks to a hosted Pinecone index over its REST API.
type PineconeIndex struct {
	apiKey     string
	indexName  string
	controlURL string
	httpClient *http.Client

	mu   sync.Mutex
	host string
}

// NewPineconeIndex creates an index client. No network call is made until
// the first Query or Upsert; requests are bounded only by the caller's context.
func NewPineconeIndex(cfg PineconeConfig) *PineconeIndex {
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultPineconeIndex
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = DefaultControlURL
	}
	return &PineconeIndex{
		apiKey:     cfg.APIKey,
		indexName:  cfg.IndexName,
		controlURL: strings.TrimRight(cfg.ControlURL, "/"),
		httpClient: &http.Client{},
		host:       normalizeHost(cfg.Host),
	}
}

type pineconeMetadata struct {
	Text string `json:"text"`
}

type pineconeVector struct {
	ID       string           `json:"id"`
	Values   []float32        `json:"values"`
	Metadata pineconeMetadata `json:"metadata"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float32        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type upsertRequest struct {
	Vectors []pineconeVector `json:"vectors"`
}

// Query returns up to topK nearest records with their stored text.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	var resp queryResponse
	err := p.post(ctx, "/query", queryRequest{Vector: vector, TopK: topK, IncludeMetadata: true}, &resp)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		text, _ := m.Metadata[metadataTextKey].(string)
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Text: text})
	}
	return matches, nil
}

// Upsert writes vectors with their text as metadata.
func (p *PineconeIndex) Upsert(ctx context.Context, vectors []Vector) error {
	req := upsertRequest{Vectors: make([]pineconeVector, len(vectors))}
	for i, v := range vectors {
		req.Vectors[i] = pineconeVector{ID: v.ID, Values: v.Values, Metadata: pineconeMetadata{Text: v.Text}}
	}
	return p.post(ctx, "/vectors/upsert", req, nil)
}

func (p *PineconeIndex) post(ctx context.Context, path string, in, out any) error {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxPineconeError))
		return fmt.Errorf("pinecone %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// resolveHost returns the data-plane host, asking the control plane for it
// once. A failed lookup is retried on the next call.
func (p *PineconeIndex) resolveHost(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.host != "" {
		return p.host, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.controlURL+"/indexes/"+p.indexName, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("describing index %s: %w", p.indexName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("describing index %s: unexpected status %d", p.indexName, resp.StatusCode)
	}

	var desc struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return "", fmt.Errorf("decoding index description: %w", err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %s has no host", p.indexName)
	}

	p.host = normalizeHost(desc.Host)
	return p.host, nil
}

func (p *PineconeIndex) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)
}

func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	if h == "" || strings.Contains(h, "://") {
		return h
	}
	return "https://" + h
}
