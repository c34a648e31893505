package discord

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

func newTestClient(t *testing.T, rec *transporttest.Recorder, extra map[string]string) *Client {
	t.Helper()
	values := map[string]string{"bot_token": "bot", "channel_id": "555"}
	for k, v := range extra {
		values[k] = v
	}
	cfg, err := ConfigFrom(publish.NewCredentials(publish.Discord, values))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	return client
}

func TestPublishChannelMessage(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusOK, map[string]any{"id": "1234567890"}))
	client := newTestClient(t, rec, nil)

	post := content.NewPost("deploy finished", content.WithTitle("CI"))
	resp, err := client.Publish(context.Background(), post, publish.Options{"disable_notification": true})
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", id)

	req := rec.Last()
	assert.Equal(t, "https://discord.com/api/v10/channels/555/messages", req.URL)
	assert.Equal(t, "Bot bot", req.Headers["Authorization"])
	msg := req.JSON.(message)
	assert.Equal(t, "**CI**\n\ndeploy finished", msg.Content)
	assert.Equal(t, flagSuppressNotifications, msg.Flags)
}

func TestPublishWebhook(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusOK, map[string]any{"id": "77"}))
	client := newTestClient(t, rec, map[string]string{"webhook_url": "https://discord.com/api/webhooks/1/abc"})

	_, err := client.Publish(context.Background(), content.NewPost("hook"), publish.Options{"username": "sendto"})
	require.NoError(t, err)

	req := rec.Last()
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", req.URL)
	assert.Equal(t, "true", req.Query.Get("wait"))
	assert.Empty(t, req.Headers["Authorization"])
	assert.Equal(t, "sendto", req.JSON.(message).Username)
}

func TestPublishAttachments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("log"), 0o600))

	rec := transporttest.New(transporttest.JSON(http.StatusOK, map[string]any{"id": "8"}))
	client := newTestClient(t, rec, nil)

	post := content.NewPost("see attached", content.WithMedia(content.NewMediaCollection(content.Media{Path: path, MimeType: "text/plain"})))
	_, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)

	req := rec.Last()
	assert.Nil(t, req.JSON)
	require.Len(t, req.Files, 1)
	assert.Equal(t, "files[0]", req.Files[0].Field)
	assert.Equal(t, "log.txt", req.Files[0].Name)

	var payload message
	require.NoError(t, json.Unmarshal([]byte(req.Form.Get("payload_json")), &payload))
	assert.Equal(t, "see attached", payload.Content)
}

func TestParseResponseError(t *testing.T) {
	client := newTestClient(t, transporttest.New(), nil)
	_, err := client.ParseResponse(transporttest.JSON(http.StatusForbidden, map[string]any{"message": "Missing Access", "code": 50001}).Response)

	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "50001", apiErr.Code)
	assert.EqualError(t, err, "Missing Access")
}

func TestPublishEmpty(t *testing.T) {
	rec := transporttest.New()
	_, err := newTestClient(t, rec, nil).Publish(context.Background(), content.NewPost("  "), nil)
	var validation publish.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Zero(t, rec.Count())
}
