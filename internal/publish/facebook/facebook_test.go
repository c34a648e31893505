package facebook

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, rec *transporttest.Recorder, extra map[string]string) *Client {
	t.Helper()
	values := map[string]string{
		"app_id":            "1",
		"app_secret":        "secret",
		"page_access_token": "token",
		"page_id":           "42",
	}
	for k, v := range extra {
		values[k] = v
	}
	cfg, err := ConfigFrom(publish.NewCredentials(publish.Facebook, values))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	return client
}

func TestPublishLink(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusOK, map[string]any{"id": "42_100"}))
	client := newTestClient(t, rec, nil)

	post := content.NewPost("Read this", content.WithURL("https://example.com/post"))
	resp, err := client.Publish(context.Background(), post, publish.Options{"type": "link"})
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "42_100", id)

	req := rec.Last()
	assert.Equal(t, "https://graph.facebook.com/v21.0/42/feed", req.URL)
	assert.Equal(t, "Read this", req.Form.Get("message"))
	assert.Equal(t, "https://example.com/post", req.Form.Get("link"))
	assert.Equal(t, "token", req.Form.Get("access_token"))
	assert.Equal(t, AppSecretProof("secret", "token"), req.Form.Get("appsecret_proof"))
}

func TestPublishPhoto(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusOK, map[string]any{"id": "photo1", "post_id": "42_200"}))
	client := newTestClient(t, rec, map[string]string{"default_graph_version": "19.0"})

	post := content.NewPost("Sunset", content.WithMedia(content.NewMediaCollection(content.Media{Path: "https://example.com/s.jpg", MimeType: content.MimeJPEG})))
	resp, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "42_200", id)

	req := rec.Last()
	assert.Equal(t, "https://graph.facebook.com/v19.0/42/photos", req.URL)
	assert.Equal(t, "https://example.com/s.jpg", req.Form.Get("url"))
	assert.Equal(t, "Sunset", req.Form.Get("caption"))
	assert.Empty(t, req.Files)
}

func TestPublishLocalVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4"), 0o600))

	rec := transporttest.New(transporttest.JSON(http.StatusOK, map[string]any{"id": "v9"}))
	client := newTestClient(t, rec, nil)

	post := content.NewPost("Clip", content.WithTitle("Launch"), content.WithMedia(content.NewMediaCollection(content.Media{Path: path, MimeType: content.MimeMP4})))
	_, err := client.Publish(context.Background(), post, publish.Options{"scheduled_publish_time": 1900000000})
	require.NoError(t, err)

	req := rec.Last()
	assert.Equal(t, "https://graph.facebook.com/v21.0/42/videos", req.URL)
	assert.Equal(t, "Launch", req.Form.Get("title"))
	assert.Equal(t, "false", req.Form.Get("published"))
	assert.Equal(t, "1900000000", req.Form.Get("scheduled_publish_time"))
	require.Len(t, req.Files, 1)
	assert.Equal(t, "source", req.Files[0].Field)
	assert.Empty(t, req.Form.Get("file_url"))
}

func TestPublishValidation(t *testing.T) {
	rec := transporttest.New()
	client := newTestClient(t, rec, nil)

	for _, opts := range []publish.Options{{"type": "photo"}, {"type": "story"}} {
		_, err := client.Publish(context.Background(), content.NewPost("x"), opts)
		var validation publish.ValidationError
		assert.ErrorAs(t, err, &validation)
	}
	assert.Zero(t, rec.Count())
}

func TestParseResponseError(t *testing.T) {
	client := newTestClient(t, transporttest.New(), nil)
	_, err := client.ParseResponse(transporttest.JSON(http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "Invalid OAuth access token.", "type": "OAuthException", "code": 190},
	}).Response)

	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "190", apiErr.Code)
	assert.EqualError(t, err, "Invalid OAuth access token.")
}

func TestAppSecretProof(t *testing.T) {
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", AppSecretProof("key", "The quick brown fox jumps over the lazy dog"))
}
