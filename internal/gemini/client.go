// Package gemini wraps the Google GenAI SDK for text generation (with an
// optional inline image) and text embedding.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kalambet/juskvi/internal/attach"
)

// modelsAPI is the subset of *genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client talks to the Gemini API.
type Client struct {
	models modelsAPI
}

// New creates a Client authenticated with apiKey.
func New(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{models: c.Models}, nil
}

// Generate sends the system prompt and user context as one text part,
// followed by the image when present, and returns the response text. SDK
// errors are returned as is; their message becomes the persona's answer.
func (c *Client) Generate(ctx context.Context, model, system, user string, img *attach.Image) (string, error) {
	resp, err := c.models.GenerateContent(ctx, model, buildContents(system, user, img), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", model, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Values, nil
}

func buildContents(system, user string, img *attach.Image) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(system + "\n" + user)}
	if img != nil {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
