package collab

import (
	"context"
	"net/http"

	"pressflow/internal/domain"
)

// SocialClient announces published posts on a social webhook. Cross-posting
// is best-effort; callers downgrade its errors to warnings.
type SocialClient struct {
	webhookURL string
	client     *http.Client
}

func NewSocialClient(webhookURL string, client *http.Client) *SocialClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &SocialClient{webhookURL: webhookURL, client: client}
}

type socialPost struct {
	Site  string `json:"site"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (c *SocialClient) CrossPost(ctx context.Context, project domain.Project, receipt domain.PublishReceipt, content domain.GeneratedContent) error {
	return postJSON(ctx, c.client, c.webhookURL, nil, socialPost{
		Site:  project.SiteURL,
		Title: content.Title,
		URL:   receipt.URL,
	}, nil)
}
