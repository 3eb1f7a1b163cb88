package collab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SitemapFetcher downloads the target site's sitemap for duplicate checks.
type SitemapFetcher struct {
	client *http.Client
}

func NewSitemapFetcher(client *http.Client) *SitemapFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapFetcher{client: client}
}

func (f *SitemapFetcher) Fetch(ctx context.Context, siteURL string) (io.ReadCloser, error) {
	url := strings.TrimRight(siteURL, "/") + "/sitemap.xml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(msg))
	}
	return resp.Body, nil
}
