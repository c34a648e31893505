package pinterest

import (
	"context"
	"encoding/base64"
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

func newTestClient(t *testing.T, rec *transporttest.Recorder) *Client {
	t.Helper()
	cfg, err := ConfigFrom(publish.NewCredentials(publish.Pinterest, map[string]string{"access_token": "tok", "board_id": "b1"}))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	return client
}

func TestPublishRemoteImage(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusCreated, map[string]any{"id": "813744226420795884"}))
	client := newTestClient(t, rec)

	post := content.NewPost("Cozy corner ideas",
		content.WithTitle("Reading nook"),
		content.WithURL("https://example.com/nook"),
		content.WithTags("interior"),
		content.WithMedia(content.NewMediaCollection(content.Media{Path: "https://example.com/n.jpg", MimeType: content.MimeJPEG})),
	)
	resp, err := client.Publish(context.Background(), post, publish.Options{"alt_text": "armchair"})
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "813744226420795884", id)

	req := rec.Last()
	assert.Equal(t, "https://api.pinterest.com/v5/pins", req.URL)
	assert.Equal(t, "Bearer tok", req.Headers["Authorization"])
	p := req.JSON.(pin)
	assert.Equal(t, "b1", p.BoardID)
	assert.Equal(t, "Reading nook", p.Title)
	assert.Equal(t, "Cozy corner ideas\n\n#interior", p.Description)
	assert.Equal(t, "https://example.com/nook", p.Link)
	assert.Equal(t, "armchair", p.AltText)
	assert.Equal(t, mediaSource{SourceType: "image_url", URL: "https://example.com/n.jpg"}, p.MediaSource)
}

func TestPublishLocalImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pin.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	rec := transporttest.New(transporttest.JSON(http.StatusCreated, map[string]any{"id": "1"}))
	post := content.NewPost("x", content.WithMedia(content.NewMediaCollection(content.Media{Path: path, MimeType: "image/png"})))
	_, err := newTestClient(t, rec).Publish(context.Background(), post, publish.Options{"board_id": "b2"})
	require.NoError(t, err)

	p := rec.Last().JSON.(pin)
	assert.Equal(t, "b2", p.BoardID)
	assert.Equal(t, "image_base64", p.MediaSource.SourceType)
	assert.Equal(t, "image/png", p.MediaSource.ContentType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), p.MediaSource.Data)
}

func TestPublishNeedsImage(t *testing.T) {
	for _, post := range []content.Post{
		content.NewPost("no media"),
		content.NewPost("video", content.WithMedia(content.NewMediaCollection(content.Media{Path: "https://example.com/v.mp4", MimeType: content.MimeMP4}))),
	} {
		rec := transporttest.New()
		_, err := newTestClient(t, rec).Publish(context.Background(), post, nil)

		var validation publish.ValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Zero(t, rec.Count())
	}
}

func TestParseResponseError(t *testing.T) {
	client := newTestClient(t, transporttest.New())
	_, err := client.ParseResponse(transporttest.JSON(http.StatusNotFound, map[string]any{"code": 3, "message": "Board not found."}).Response)

	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "3", apiErr.Code)
	assert.EqualError(t, err, "Board not found.")
}
