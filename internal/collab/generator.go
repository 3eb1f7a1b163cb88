package collab

import (
	"context"
	"net/http"

	"pressflow/internal/domain"
	"pressflow/internal/executor"
)

// GeneratorClient talks to the content generation service. The engine does
// not inspect the returned content beyond the duplicate check.
type GeneratorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGeneratorClient(baseURL, apiKey string, client *http.Client) *GeneratorClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GeneratorClient{baseURL: baseURL, apiKey: apiKey, client: client}
}

type generateRequest struct {
	Title    string   `json:"title"`
	Keywords []string `json:"keywords,omitempty"`
	Category string   `json:"category,omitempty"`
}

type generateResponse struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Keyword  string            `json:"keyword,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c *GeneratorClient) Generate(ctx context.Context, req executor.GenerationRequest) (domain.GeneratedContent, error) {
	var resp generateResponse
	err := postJSON(ctx, c.client, c.baseURL+"/v1/generate", c.headers(), generateRequest{
		Title:    req.Title,
		Keywords: req.Keywords,
		Category: req.Category,
	}, &resp)
	if err != nil {
		return domain.GeneratedContent{}, err
	}
	content := domain.GeneratedContent{
		Title:    resp.Title,
		Body:     resp.Body,
		Keyword:  resp.Keyword,
		Metadata: resp.Metadata,
	}
	if content.Title == "" {
		content.Title = req.Title
	}
	return content, nil
}

func (c *GeneratorClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}
