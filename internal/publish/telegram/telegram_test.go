package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport/transporttest"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, rec *transporttest.Recorder) *Client {
	t.Helper()
	creds := publish.NewCredentials(publish.Telegram, map[string]string{"api_token": "T", "channel_username": "@c"})
	cfg, err := ConfigFrom(creds)
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	return client
}

func okReply(result any) transporttest.Reply {
	return transporttest.JSON(http.StatusOK, map[string]any{"ok": true, "result": result})
}

func TestConfigFromRequiresToken(t *testing.T) {
	_, err := ConfigFrom(publish.NewCredentials(publish.Telegram, map[string]string{"channel_username": "@c"}))
	var missing publish.MissingCredentialsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"api_token"}, missing.Keys)
}

func TestPublishText(t *testing.T) {
	rec := transporttest.New(okReply(map[string]any{"message_id": 123}))
	client := newTestClient(t, rec)

	resp, err := client.Publish(context.Background(), content.NewPost("Hello Telegram"), nil)
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "123", id)

	req := rec.Last()
	assert.Equal(t, "https://api.telegram.org/botT/sendMessage", req.URL)
	assert.Equal(t, "@c", req.Form.Get("chat_id"))
	assert.Equal(t, "Hello Telegram", req.Form.Get("text"))
	assert.Equal(t, "HTML", req.Form.Get("parse_mode"))
	assert.Empty(t, req.Form.Get("reply_markup"))
}

func TestPublishRejected(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusBadRequest, map[string]any{
		"ok":          false,
		"error_code":  400,
		"description": "Bad Request: chat not found",
	}))
	client := newTestClient(t, rec)

	resp, err := client.Publish(context.Background(), content.NewPost("hi"), nil)
	require.NoError(t, err)

	_, err = client.ParseResponse(resp)
	var apiErr *publish.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "400", apiErr.Code)
	assert.EqualError(t, err, "Bad Request: chat not found")
}

func TestPublishTransportError(t *testing.T) {
	client := newTestClient(t, transporttest.New(transporttest.Fail(errors.New("dial tcp: refused"))))
	_, err := client.Publish(context.Background(), content.NewPost("hi"), nil)

	var transportErr *publish.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, publish.Telegram, transportErr.Platform)
}

func TestPublishOptions(t *testing.T) {
	rec := transporttest.New(okReply(map[string]any{"message_id": 1}))
	client := newTestClient(t, rec)

	keyboard := tu.InlineKeyboard(tu.InlineKeyboardRow(tu.InlineKeyboardButton("Open").WithURL("https://example.com")))
	post := content.NewPost("body", content.WithTitle("A & B"))
	_, err := client.Publish(context.Background(), post, publish.Options{
		"chat_id":              "-100200",
		"disable_notification": true,
		"inline_keyboard":      keyboard,
	})
	require.NoError(t, err)

	req := rec.Last()
	assert.Equal(t, "-100200", req.Form.Get("chat_id"))
	assert.Equal(t, "true", req.Form.Get("disable_notification"))
	assert.Equal(t, "<b>A &amp; B</b>\n\nbody", req.Form.Get("text"))

	var markup telego.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(req.Form.Get("reply_markup")), &markup))
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "Open", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://example.com", markup.InlineKeyboard[0][0].URL)
}

func TestPublishBadKeyboard(t *testing.T) {
	rec := transporttest.New()
	client := newTestClient(t, rec)

	_, err := client.Publish(context.Background(), content.NewPost("x"), publish.Options{"inline_keyboard": 42})
	var validation publish.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Zero(t, rec.Count())
}

func TestPublishSingleMedia(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(local, []byte("video"), 0o600))

	tests := []struct {
		name   string
		media  content.Media
		method string
		field  string
		upload bool
	}{
		{"remote photo", content.Media{Path: "https://example.com/a.jpg", MimeType: content.MimeJPEG}, "sendPhoto", "photo", false},
		{"local video", content.Media{Path: local, MimeType: content.MimeMP4, Duration: 12}, "sendVideo", "video", true},
		{"audio", content.Media{Path: "file-id", MimeType: content.MimeMPEG}, "sendAudio", "audio", false},
		{"document", content.Media{Path: "file-id", MimeType: content.MimeOctetStream}, "sendDocument", "document", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := transporttest.New(okReply(map[string]any{"message_id": 5}))
			client := newTestClient(t, rec)

			post := content.NewPost("caption", content.WithMedia(content.NewMediaCollection(tt.media)))
			_, err := client.Publish(context.Background(), post, publish.Options{"width": 640})
			require.NoError(t, err)

			req := rec.Last()
			assert.Equal(t, "https://api.telegram.org/botT/"+tt.method, req.URL)
			assert.Equal(t, "caption", req.Form.Get("caption"))
			assert.Equal(t, "640", req.Form.Get("width"))
			if tt.upload {
				require.Len(t, req.Files, 1)
				assert.Equal(t, tt.field, req.Files[0].Field)
				assert.Equal(t, "12", req.Form.Get("duration"))
			} else {
				assert.Empty(t, req.Files)
				assert.Equal(t, tt.media.Path, req.Form.Get(tt.field))
			}
		})
	}
}

func TestPublishCaptionLimit(t *testing.T) {
	rec := transporttest.New(okReply(map[string]any{"message_id": 5}))
	client := newTestClient(t, rec)

	long := make([]rune, CaptionLimit+100)
	for i := range long {
		long[i] = 'a'
	}
	post := content.NewPost(string(long), content.WithMedia(content.NewMediaCollection(content.Media{Path: "id", MimeType: content.MimeJPEG})))
	_, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)

	assert.Len(t, []rune(rec.Last().Form.Get("caption")), CaptionLimit)
}

func TestPublishMediaGroup(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg"), 0o600))

	rec := transporttest.New(okReply([]map[string]any{{"message_id": 10}, {"message_id": 11}}))
	client := newTestClient(t, rec)

	post := content.NewPost("album", content.WithMedia(content.NewMediaCollection(
		content.Media{Path: local, MimeType: content.MimeJPEG},
		content.Media{Path: "https://example.com/b.mp4", MimeType: content.MimeMP4},
	)))
	resp, err := client.Publish(context.Background(), post, publish.Options{"inline_keyboard": tu.InlineKeyboard()})
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "10", id)

	req := rec.Last()
	assert.Equal(t, "https://api.telegram.org/botT/sendMediaGroup", req.URL)
	assert.Empty(t, req.Form.Get("reply_markup"))
	require.Len(t, req.Files, 1)
	assert.Equal(t, "file0", req.Files[0].Field)

	var media []inputMedia
	require.NoError(t, json.Unmarshal([]byte(req.Form.Get("media")), &media))
	require.Len(t, media, 2)
	assert.Equal(t, inputMedia{Type: "photo", Media: "attach://file0", Caption: "album", ParseMode: "HTML"}, media[0])
	assert.Equal(t, inputMedia{Type: "video", Media: "https://example.com/b.mp4"}, media[1])
}

func TestExtendedMethods(t *testing.T) {
	ctx := context.Background()

	t.Run("location", func(t *testing.T) {
		rec := transporttest.New(okReply(map[string]any{"message_id": 1}))
		_, err := newTestClient(t, rec).SendLocation(ctx, 52.52, 13.405, publish.Options{"live_period": 60})
		require.NoError(t, err)
		req := rec.Last()
		assert.Equal(t, "https://api.telegram.org/botT/sendLocation", req.URL)
		assert.Equal(t, "52.52", req.Form.Get("latitude"))
		assert.Equal(t, "13.405", req.Form.Get("longitude"))
		assert.Equal(t, "60", req.Form.Get("live_period"))
	})

	t.Run("venue", func(t *testing.T) {
		rec := transporttest.New(okReply(map[string]any{"message_id": 2}))
		client := newTestClient(t, rec)
		_, err := client.SendVenue(ctx, 1, 2, "Cafe", "Main St 1", nil)
		require.NoError(t, err)
		assert.Equal(t, "Cafe", rec.Last().Form.Get("title"))

		_, err = client.SendVenue(ctx, 1, 2, "", "Main St 1", nil)
		var validation publish.ValidationError
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, 1, rec.Count())
	})

	t.Run("contact", func(t *testing.T) {
		rec := transporttest.New(okReply(map[string]any{"message_id": 3}))
		_, err := newTestClient(t, rec).SendContact(ctx, "+100", "Ann", publish.Options{"last_name": "Lee"})
		require.NoError(t, err)
		req := rec.Last()
		assert.Equal(t, "+100", req.Form.Get("phone_number"))
		assert.Equal(t, "Lee", req.Form.Get("last_name"))
	})

	t.Run("voice", func(t *testing.T) {
		rec := transporttest.New(okReply(map[string]any{"message_id": 4}))
		_, err := newTestClient(t, rec).SendVoice(ctx, content.Media{Path: "voice-id", Duration: 3}, "listen", nil)
		require.NoError(t, err)
		req := rec.Last()
		assert.Equal(t, "https://api.telegram.org/botT/sendVoice", req.URL)
		assert.Equal(t, "voice-id", req.Form.Get("voice"))
		assert.Equal(t, "3", req.Form.Get("duration"))
		assert.Equal(t, "listen", req.Form.Get("caption"))
	})
}

func TestBoldTitle(t *testing.T) {
	assert.Equal(t, "<b>a&lt;b</b>", boldTitle("HTML")("a<b"))
	assert.Equal(t, "*t*", boldTitle("Markdown")("t"))
	assert.Equal(t, `*v1\.0*`, boldTitle("MarkdownV2")("v1.0"))
	assert.Nil(t, boldTitle("none"))
}
