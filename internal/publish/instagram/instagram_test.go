package instagram

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, rec *transporttest.Recorder) *Client {
	t.Helper()
	cfg, err := ConfigFrom(publish.NewCredentials(publish.Instagram, map[string]string{"access_token": "tok", "instagram_account_id": "1784"}))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	client.wait = func(context.Context, time.Duration) error { return nil }
	return client
}

func idReply(id string) transporttest.Reply {
	return transporttest.JSON(http.StatusOK, map[string]any{"id": id})
}

func media(items ...content.Media) content.PostOption {
	return content.WithMedia(content.NewMediaCollection(items...))
}

func TestPublishImage(t *testing.T) {
	rec := transporttest.New(idReply("c1"), idReply("m1"))
	client := newTestClient(t, rec)

	post := content.NewPost("sunset", content.WithTags("photo"), media(content.Media{Path: "https://example.com/s.jpg", MimeType: content.MimeJPEG}))
	resp, err := client.Publish(context.Background(), post, publish.Options{"alt_text": "orange sky"})
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	reqs := rec.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "https://graph.facebook.com/v21.0/1784/media", reqs[0].URL)
	assert.Equal(t, "https://example.com/s.jpg", reqs[0].Form.Get("image_url"))
	assert.Equal(t, "sunset\n\n#photo", reqs[0].Form.Get("caption"))
	assert.Equal(t, "orange sky", reqs[0].Form.Get("alt_text"))
	assert.Equal(t, "tok", reqs[0].Form.Get("access_token"))
	assert.Equal(t, "https://graph.facebook.com/v21.0/1784/media_publish", reqs[1].URL)
	assert.Equal(t, "c1", reqs[1].Form.Get("creation_id"))
}

func TestPublishVideoWaitsForProcessing(t *testing.T) {
	rec := transporttest.New(
		idReply("c1"),
		transporttest.JSON(http.StatusOK, map[string]any{"status_code": "IN_PROGRESS"}),
		transporttest.JSON(http.StatusOK, map[string]any{"status_code": "FINISHED"}),
		idReply("m2"),
	)
	client := newTestClient(t, rec)

	post := content.NewPost("clip", media(content.Media{Path: "https://example.com/v.mp4", MimeType: content.MimeMP4}))
	resp, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)
	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "m2", id)

	reqs := rec.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, "REELS", reqs[0].Form.Get("media_type"))
	assert.Equal(t, http.MethodGet, reqs[1].Method)
	assert.Equal(t, "https://graph.facebook.com/v21.0/c1", reqs[1].URL)
	assert.Equal(t, "status_code", reqs[1].Query.Get("fields"))
}

func TestPublishCarousel(t *testing.T) {
	rec := transporttest.New(idReply("a"), idReply("b"), idReply("parent"), idReply("m3"))
	client := newTestClient(t, rec)

	post := content.NewPost("two", media(
		content.Media{Path: "https://example.com/1.jpg", MimeType: content.MimeJPEG},
		content.Media{Path: "https://example.com/2.jpg", MimeType: content.MimeJPEG},
	))
	_, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, "true", reqs[0].Form.Get("is_carousel_item"))
	assert.Empty(t, reqs[0].Form.Get("caption"))
	assert.Equal(t, "CAROUSEL", reqs[2].Form.Get("media_type"))
	assert.Equal(t, "a,b", reqs[2].Form.Get("children"))
	assert.Equal(t, "two", reqs[2].Form.Get("caption"))
	assert.Equal(t, "parent", reqs[3].Form.Get("creation_id"))
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name string
		post content.Post
	}{
		{"no media", content.NewPost("text only")},
		{"local file", content.NewPost("x", media(content.Media{Path: "/tmp/a.jpg", MimeType: content.MimeJPEG}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transporttest.New()
			_, err := newTestClient(t, rec).Publish(context.Background(), tt.post, nil)

			var validation publish.ValidationError
			assert.ErrorAs(t, err, &validation)
			assert.Zero(t, rec.Count())
		})
	}
}

func TestPublishContainerRejected(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "Invalid image URL", "code": 9004},
	}))
	post := content.NewPost("x", media(content.Media{Path: "https://example.com/a.jpg", MimeType: content.MimeJPEG}))
	_, err := newTestClient(t, rec).Publish(context.Background(), post, nil)

	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "9004", apiErr.Code)
	assert.Contains(t, err.Error(), "Invalid image URL")
}
