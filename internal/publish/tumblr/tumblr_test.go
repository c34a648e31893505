package tumblr

import (
	"context"
	"encoding/json"
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
	cfg, err := ConfigFrom(publish.NewCredentials(publish.Tumblr, map[string]string{"access_token": "tok", "blog_identifier": "staff.tumblr.com"}))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	return client
}

func created(id string) transporttest.Reply {
	return transporttest.JSON(http.StatusCreated, map[string]any{
		"meta":     map[string]any{"status": 201, "msg": "Created"},
		"response": map[string]any{"id": 1, "id_string": id},
	})
}

func TestPublishText(t *testing.T) {
	rec := transporttest.New(created("1234567891234567"))
	client := newTestClient(t, rec)

	post := content.NewPost("Release notes are up", content.WithTitle("v2.0"), content.WithTags("release", "go"))
	resp, err := client.Publish(context.Background(), post, publish.Options{"state": "draft"})
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "1234567891234567", id)

	req := rec.Last()
	assert.Equal(t, "https://api.tumblr.com/v2/blog/staff.tumblr.com/posts", req.URL)
	assert.Equal(t, "Bearer tok", req.Headers["Authorization"])
	p := req.JSON.(npfPost)
	assert.Equal(t, "draft", p.State)
	assert.Equal(t, "release,go", p.Tags)
	assert.Equal(t, []block{
		{Type: "text", Subtype: "heading1", Text: "v2.0"},
		{Type: "text", Text: "Release notes are up"},
	}, p.Content)
}

func TestPublishRemoteMedia(t *testing.T) {
	rec := transporttest.New(created("1"))
	post := content.NewPost("look", content.WithMedia(content.NewMediaCollection(
		content.Media{Path: "https://example.com/a.jpg", MimeType: content.MimeJPEG},
		content.Media{Path: "https://example.com/b.mp4", MimeType: content.MimeMP4},
	)))
	_, err := newTestClient(t, rec).Publish(context.Background(), post, publish.Options{"alt_text": "cat"})
	require.NoError(t, err)

	req := rec.Last()
	assert.Empty(t, req.Files)
	p := req.JSON.(npfPost)
	require.Len(t, p.Content, 3)
	assert.Equal(t, block{Type: "image", Media: []mediaObject{{URL: "https://example.com/a.jpg"}}, AltText: "cat"}, p.Content[1])
	assert.Equal(t, block{Type: "video", Media: mediaObject{URL: "https://example.com/b.mp4"}}, p.Content[2])
}

func TestPublishLocalMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	rec := transporttest.New(created("1"))
	post := content.NewPost("", content.WithMedia(content.NewMediaCollection(content.Media{Path: path, MimeType: "image/png"})))
	_, err := newTestClient(t, rec).Publish(context.Background(), post, nil)
	require.NoError(t, err)

	req := rec.Last()
	assert.Nil(t, req.JSON)
	require.Len(t, req.Files, 1)
	assert.Equal(t, "media-0", req.Files[0].Field)
	assert.Equal(t, "photo.png", req.Files[0].Name)
	assert.Equal(t, []byte("png"), req.Files[0].Data)

	var p struct {
		Content []struct {
			Type  string `json:"type"`
			Media []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"media"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Form.Get("json")), &p))
	require.Len(t, p.Content, 1)
	assert.Equal(t, "image", p.Content[0].Type)
	assert.Equal(t, "media-0", p.Content[0].Media[0].Identifier)
	assert.Equal(t, "image/png", p.Content[0].Media[0].Type)
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name string
		post content.Post
		opts publish.Options
	}{
		{"empty post", content.NewPost("  "), nil},
		{"bad state", content.NewPost("hi"), publish.Options{"state": "scheduled"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transporttest.New()
			_, err := newTestClient(t, rec).Publish(context.Background(), tt.post, tt.opts)

			var validation publish.ValidationError
			assert.ErrorAs(t, err, &validation)
			assert.Zero(t, rec.Count())
		})
	}
}

func TestParseResponseError(t *testing.T) {
	client := newTestClient(t, transporttest.New())
	_, err := client.ParseResponse(transporttest.JSON(http.StatusBadRequest, map[string]any{
		"meta":   map[string]any{"status": 400, "msg": "Bad Request"},
		"errors": []map[string]any{{"title": "Bad Request", "code": 8001, "detail": "Posts cannot be empty."}},
	}).Response)

	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "8001", apiErr.Code)
	assert.Equal(t, "Posts cannot be empty.", apiErr.Message)

	_, err = client.ParseResponse(transporttest.JSON(http.StatusUnauthorized, map[string]any{
		"meta": map[string]any{"status": 401, "msg": "Unauthorized"},
	}).Response)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Message)
}
