package collab

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressflow/internal/domain"
	"pressflow/internal/executor"
)

func TestGeneratorClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "keto dieet tips", req.Title)

		json.NewEncoder(w).Encode(generateResponse{
			Title:   "Keto Dieet Tips",
			Body:    "<p>artikel</p>",
			Keyword: "keto dieet",
		})
	}))
	defer srv.Close()

	client := NewGeneratorClient(srv.URL, "test-key", srv.Client())
	content, err := client.Generate(context.Background(), executor.GenerationRequest{
		Title:    "keto dieet tips",
		Keywords: []string{"keto dieet"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Keto Dieet Tips", content.Title)
	assert.Equal(t, "keto dieet", content.Keyword)
}

func TestGeneratorClientFallsBackToRequestTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Body: "<p>artikel</p>"})
	}))
	defer srv.Close()

	client := NewGeneratorClient(srv.URL, "", srv.Client())
	content, err := client.Generate(context.Background(), executor.GenerationRequest{Title: "fallback"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", content.Title)
}

func TestGeneratorClientSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewGeneratorClient(srv.URL, "", srv.Client())
	_, err := client.Generate(context.Background(), executor.GenerationRequest{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestWordPressPublisher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		assert.Equal(t, "Bearer app-password", r.Header.Get("Authorization"))

		var req wpPostRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "publish", req.Status)

		json.NewEncoder(w).Encode(wpPostResponse{ID: 417, Link: "https://x.nl/keto-dieet-tips"})
	}))
	defer srv.Close()

	pub := NewWordPressPublisher(srv.Client())
	receipt, err := pub.Publish(context.Background(), domain.Project{
		SiteURL:           srv.URL,
		PublishCredential: "app-password",
	}, domain.GeneratedContent{Title: "Keto Dieet Tips", Body: "<p>artikel</p>"})
	require.NoError(t, err)
	assert.Equal(t, "417", receipt.ExternalID)
	assert.Equal(t, "https://x.nl/keto-dieet-tips", receipt.URL)
}

func TestWordPressPublisherRequiresCredential(t *testing.T) {
	pub := NewWordPressPublisher(nil)
	_, err := pub.Publish(context.Background(), domain.Project{SiteURL: "https://x.nl"}, domain.GeneratedContent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestSocialClientPostsWebhook(t *testing.T) {
	var got socialPost
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewSocialClient(srv.URL, srv.Client())
	err := client.CrossPost(context.Background(),
		domain.Project{SiteURL: "https://x.nl"},
		domain.PublishReceipt{URL: "https://x.nl/post"},
		domain.GeneratedContent{Title: "Keto Dieet Tips"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.nl/post", got.URL)
	assert.Equal(t, "Keto Dieet Tips", got.Title)
}

func TestSitemapFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `<urlset><url><loc>https://x.nl/a</loc></url></urlset>`)
	}))
	defer srv.Close()

	f := NewSitemapFetcher(srv.Client())
	body, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://x.nl/a")
}

func TestSitemapFetcherReportsMissingSitemap(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewSitemapFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
