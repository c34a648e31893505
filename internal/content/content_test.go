package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaCollectionOrder(t *testing.T) {
	items := []Media{{Path: "a.jpg", MimeType: MimeJPEG}, {Path: "b.mp4", MimeType: MimeMP4}}
	c := NewMediaCollection(items...)
	items[0].Path = "changed"

	require.Equal(t, 2, c.Len())
	assert.Equal(t, "a.jpg", c.At(0).Path)
	assert.True(t, c.At(0).IsImage())
	assert.True(t, c.At(1).IsVideo())

	first, ok := c.First()
	require.True(t, ok)
	assert.Equal(t, "a.jpg", first.Path)

	all := c.All()
	all[1].Path = "mutated"
	assert.Equal(t, "b.mp4", c.At(1).Path)
}

func TestNilMediaCollection(t *testing.T) {
	var c *MediaCollection
	assert.Zero(t, c.Len())
	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.All())
	_, ok := c.First()
	assert.False(t, ok)
}

func TestPost(t *testing.T) {
	tags := []string{"go", "release"}
	meta := map[string]any{"type": "photo"}
	p := NewPost("body",
		WithTitle("Title"),
		WithURL("https://example.com"),
		WithTags(tags...),
		WithMetadata(meta),
		WithMedia(NewMediaCollection(Media{Path: "a.mp3", MimeType: MimeMPEG})),
	)
	tags[0] = "changed"
	meta["type"] = "video"

	assert.Equal(t, "Title", p.Title())
	assert.Equal(t, "body", p.Body())
	assert.Equal(t, "https://example.com", p.URL())
	assert.Equal(t, []string{"go", "release"}, p.Tags())
	assert.Equal(t, "photo", p.MetaString("type", ""))
	assert.Equal(t, "def", p.MetaString("missing", "def"))
	assert.True(t, p.HasMedia())
	assert.True(t, p.Media().At(0).IsAudio())

	plain := NewPost("only text")
	assert.False(t, plain.HasMedia())
	assert.Nil(t, plain.Media())
	_, ok := plain.Meta("type")
	assert.False(t, ok)
}
