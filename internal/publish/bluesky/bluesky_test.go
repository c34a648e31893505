package bluesky

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/blacktop/sendto/internal/transport/transporttest"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionReply = transporttest.JSON(http.StatusOK, map[string]any{
	"accessJwt":  "jwt",
	"refreshJwt": "refresh",
	"handle":     "me.bsky.social",
	"did":        "did:plc:abc",
})

func newTestClient(t *testing.T, rec *transporttest.Recorder) *Client {
	t.Helper()
	cfg, err := ConfigFrom(publish.NewCredentials(publish.Bluesky, map[string]string{
		"handle":       "me.bsky.social",
		"app_password": "pw",
	}))
	require.NoError(t, err)
	client, err := New(cfg, rec)
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return client
}

func TestPublishText(t *testing.T) {
	rec := transporttest.New(sessionReply, transporttest.JSON(http.StatusOK, map[string]any{
		"uri": "at://did:plc:abc/app.bsky.feed.post/3k",
		"cid": "bafy",
	}))
	client := newTestClient(t, rec)

	post := content.NewPost("Hello sky", content.WithURL("https://example.com"), content.WithTitle("Example"))
	resp, err := client.Publish(context.Background(), post, nil)
	require.NoError(t, err)

	id, err := client.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3k", id)

	reqs := rec.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "https://bsky.social/xrpc/com.atproto.server.createSession", reqs[0].URL)
	assert.Empty(t, reqs[0].Headers["Authorization"])
	assert.Equal(t, "me.bsky.social", reqs[0].JSON.(*atproto.ServerCreateSession_Input).Identifier)

	assert.Equal(t, "https://bsky.social/xrpc/com.atproto.repo.createRecord", reqs[1].URL)
	assert.Equal(t, "Bearer jwt", reqs[1].Headers["Authorization"])
	input := reqs[1].JSON.(*atproto.RepoCreateRecord_Input)
	assert.Equal(t, "did:plc:abc", input.Repo)
	record := input.Record.Val.(*bsky.FeedPost)
	assert.Equal(t, "Hello sky\n\nhttps://example.com", record.Text)
	assert.Equal(t, "2025-01-02T03:04:05Z", record.CreatedAt)
	require.NotNil(t, record.Embed.EmbedExternal)
	assert.Equal(t, "Example", record.Embed.EmbedExternal.External.Title)
	require.Len(t, record.Facets, 1)
	assert.Equal(t, "https://example.com", record.Facets[0].Features[0].RichtextFacet_Link.Uri)
}

func TestPublishWithImages(t *testing.T) {
	rec := transporttest.New(
		sessionReply,
		transporttest.Reply{Response: &transport.Response{Status: http.StatusOK, Body: []byte("img")}},
		transporttest.JSON(http.StatusOK, map[string]any{"blob": map[string]any{
			"$type":    "blob",
			"ref":      map[string]any{"$link": "bafkreibme22gw2h7y2h7tg2fhqotaqjucnbc24deqo72b6mkl2egezxhvy"},
			"mimeType": "image/jpeg",
			"size":     3,
		}}),
		transporttest.JSON(http.StatusOK, map[string]any{"uri": "at://x/app.bsky.feed.post/1"}),
	)
	client := newTestClient(t, rec)

	post := content.NewPost("pic", content.WithMedia(content.NewMediaCollection(content.Media{Path: "https://example.com/a.jpg", MimeType: content.MimeJPEG})))
	_, err := client.Publish(context.Background(), post, publish.Options{"alt_text": "alt"})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, "https://bsky.social/xrpc/com.atproto.repo.uploadBlob", reqs[2].URL)
	assert.Equal(t, []byte("img"), reqs[2].Body)
	assert.Equal(t, content.MimeJPEG, reqs[2].Headers["Content-Type"])

	record := reqs[3].JSON.(*atproto.RepoCreateRecord_Input).Record.Val.(*bsky.FeedPost)
	require.Len(t, record.Embed.EmbedImages.Images, 1)
	assert.Equal(t, "alt", record.Embed.EmbedImages.Images[0].Alt)
	assert.IsType(t, &util.LexBlob{}, record.Embed.EmbedImages.Images[0].Image)
}

func TestPublishLoginFailure(t *testing.T) {
	rec := transporttest.New(transporttest.JSON(http.StatusUnauthorized, map[string]any{
		"error":   "AuthenticationRequired",
		"message": "Invalid identifier or password",
	}))
	client := newTestClient(t, rec)

	_, err := client.Publish(context.Background(), content.NewPost("x"), nil)
	assert.ErrorContains(t, err, "Invalid identifier or password")
	assert.Equal(t, 1, rec.Count())
}

func TestPublishRejectsVideo(t *testing.T) {
	rec := transporttest.New()
	client := newTestClient(t, rec)

	post := content.NewPost("x", content.WithMedia(content.NewMediaCollection(content.Media{Path: "v.mp4", MimeType: content.MimeMP4})))
	_, err := client.Publish(context.Background(), post, nil)
	var validation publish.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Zero(t, rec.Count())
}

func TestFacets(t *testing.T) {
	text := "café #golang and https://go.dev. #2025 #ok"
	got := facets(text)
	require.Len(t, got, 3)

	link := got[0]
	assert.Equal(t, "https://go.dev", text[link.Index.ByteStart:link.Index.ByteEnd])

	tag := got[1]
	assert.Equal(t, "#golang", text[tag.Index.ByteStart:tag.Index.ByteEnd])
	assert.Equal(t, "golang", tag.Features[0].RichtextFacet_Tag.Tag)
	assert.Equal(t, "ok", got[2].Features[0].RichtextFacet_Tag.Tag)
}
