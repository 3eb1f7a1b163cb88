package collab

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"pressflow/internal/domain"
)

// WordPressPublisher pushes content to the project's WordPress REST API using
// the project's application password.
type WordPressPublisher struct {
	client *http.Client
}

func NewWordPressPublisher(client *http.Client) *WordPressPublisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &WordPressPublisher{client: client}
}

type wpPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type wpPostResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

func (p *WordPressPublisher) Publish(ctx context.Context, project domain.Project, content domain.GeneratedContent) (domain.PublishReceipt, error) {
	if project.PublishCredential == "" {
		return domain.PublishReceipt{}, fmt.Errorf("project %s has no publish credentials", project.ID)
	}

	var resp wpPostResponse
	err := postJSON(ctx, p.client, project.SiteURL+"/wp-json/wp/v2/posts", map[string]string{
		"Authorization": "Bearer " + project.PublishCredential,
	}, wpPostRequest{
		Title:   content.Title,
		Content: content.Body,
		Status:  "publish",
	}, &resp)
	if err != nil {
		return domain.PublishReceipt{}, err
	}
	return domain.PublishReceipt{
		ExternalID: strconv.FormatInt(resp.ID, 10),
		URL:        resp.Link,
	}, nil
}
