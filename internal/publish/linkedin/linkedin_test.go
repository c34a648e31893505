package linkedin

import (
	"context"
	"net/http"
	"testing"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/blacktop/sendto/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, rec *transporttest.Recorder, values map[string]string) *Client {
	t.Helper()
	cfg, err := ConfigFrom(publish.NewCredentials(publish.LinkedIn, values))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	return client
}

func TestPublishArticle(t *testing.T) {
	created := &transport.Response{
		Status: http.StatusCreated,
		Header: http.Header{"X-Restli-Id": {"urn:li:share:123"}},
	}
	rec := transporttest.New(transporttest.Reply{Response: created})
	client := newTestClient(t, rec, map[string]string{"access_token": "tok", "organization_id": "99"})

	post := content.NewPost("We shipped", content.WithTitle("Release"), content.WithURL("https://example.com/r"))
	resp, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:123", id)

	req := rec.Last()
	assert.Equal(t, "https://api.linkedin.com/v2/ugcPosts", req.URL)
	assert.Equal(t, "Bearer tok", req.Headers["Authorization"])
	assert.Equal(t, "2.0.0", req.Headers["X-Restli-Protocol-Version"])

	body := req.JSON.(ugcPost)
	assert.Equal(t, "urn:li:organization:99", body.Author)
	share := body.SpecificContent[shareContentKey]
	assert.Equal(t, "Release\n\nWe shipped", share.ShareCommentary.Text)
	assert.Equal(t, "ARTICLE", share.ShareMediaCategory)
	require.Len(t, share.Media, 1)
	assert.Equal(t, "https://example.com/r", share.Media[0].OriginalURL)
	assert.Equal(t, "PUBLIC", body.Visibility[visibilityKey])
}

func TestPublishLooksUpAuthor(t *testing.T) {
	rec := transporttest.New(
		transporttest.JSON(http.StatusOK, map[string]any{"sub": "abc"}),
		transporttest.JSON(http.StatusCreated, map[string]any{"id": "urn:li:share:7"}),
	)
	client := newTestClient(t, rec, map[string]string{"access_token": "tok"})

	resp, err := client.Publish(context.Background(), content.NewPost("hi"), nil)
	require.NoError(t, err)
	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:7", id)

	reqs := rec.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "https://api.linkedin.com/v2/userinfo", reqs[0].URL)
	assert.Equal(t, "urn:li:person:abc", reqs[1].JSON.(ugcPost).Author)
	assert.Equal(t, "NONE", reqs[1].JSON.(ugcPost).SpecificContent[shareContentKey].ShareMediaCategory)
}

func TestParseResponseError(t *testing.T) {
	client := newTestClient(t, transporttest.New(), map[string]string{"access_token": "tok"})
	_, err := client.ParseResponse(transporttest.JSON(http.StatusUnprocessableEntity, map[string]any{
		"message":          "Content is a duplicate of urn:li:share:1",
		"serviceErrorCode": 65600,
		"status":           422,
	}).Response)

	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "65600", apiErr.Code)
	assert.EqualError(t, err, "Content is a duplicate of urn:li:share:1")
}
