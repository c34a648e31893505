// Package content holds the platform-neutral model of a post and its media.
package content

import (
	"maps"
	"strings"
)

// Common MIME types used when an attachment does not carry its own.
const (
	MimeJPEG        = "image/jpeg"
	MimeMP4         = "video/mp4"
	MimeMPEG        = "audio/mpeg"
	MimeOGG         = "audio/ogg"
	MimeOctetStream = "application/octet-stream"
)

// Media describes a single attachment: a local path or a remote URL.
type Media struct {
	Path     string
	MimeType string
	Duration int
	Width    int
	Height   int
}

// IsImage reports whether the media is a picture.
func (m Media) IsImage() bool { return strings.HasPrefix(m.MimeType, "image/") }

// IsVideo reports whether the media is a video.
func (m Media) IsVideo() bool { return strings.HasPrefix(m.MimeType, "video/") }

// IsAudio reports whether the media is an audio track.
func (m Media) IsAudio() bool { return strings.HasPrefix(m.MimeType, "audio/") }

// MediaCollection is an ordered list of attachments. Order decides the
// attachment order on the target platform.
type MediaCollection struct {
	items []Media
}

// NewMediaCollection copies items into a new collection.
func NewMediaCollection(items ...Media) *MediaCollection {
	return &MediaCollection{items: append([]Media(nil), items...)}
}

// Len returns the number of attachments. A nil collection has none.
func (c *MediaCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// IsEmpty reports whether there is nothing to attach.
func (c *MediaCollection) IsEmpty() bool { return c.Len() == 0 }

// At returns the i-th attachment.
func (c *MediaCollection) At(i int) Media { return c.items[i] }

// First returns the first attachment, if any.
func (c *MediaCollection) First() (Media, bool) {
	if c.Len() == 0 {
		return Media{}, false
	}
	return c.items[0], true
}

// All returns a copy of the attachments in insertion order.
func (c *MediaCollection) All() []Media {
	if c == nil {
		return nil
	}
	return append([]Media(nil), c.items...)
}

// Post is one logical piece of content to publish. Build it with NewPost;
// it is not modified afterwards.
type Post struct {
	title    string
	body     string
	url      string
	media    *MediaCollection
	tags     []string
	metadata map[string]any
}

// PostOption customises a Post under construction.
type PostOption func(*Post)

// WithTitle sets the post title.
func WithTitle(title string) PostOption {
	return func(p *Post) { p.title = title }
}

// WithURL attaches a link to the post.
func WithURL(url string) PostOption {
	return func(p *Post) { p.url = url }
}

// WithMedia attaches a media collection. A nil collection means "no media".
func WithMedia(media *MediaCollection) PostOption {
	return func(p *Post) { p.media = media }
}

// WithTags sets the ordered tag list.
func WithTags(tags ...string) PostOption {
	return func(p *Post) { p.tags = append([]string(nil), tags...) }
}

// WithMetadata sets platform-specific passthrough values.
func WithMetadata(metadata map[string]any) PostOption {
	return func(p *Post) { p.metadata = maps.Clone(metadata) }
}

// NewPost builds a post with the given body.
func NewPost(body string, opts ...PostOption) Post {
	p := Post{body: body}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Post) Title() string { return p.title }
func (p Post) Body() string  { return p.body }
func (p Post) URL() string   { return p.url }

// Media returns the attachments or nil when the post has none.
func (p Post) Media() *MediaCollection { return p.media }

// HasMedia reports whether at least one attachment is present.
func (p Post) HasMedia() bool { return !p.media.IsEmpty() }

// Tags returns a copy of the tag list.
func (p Post) Tags() []string { return append([]string(nil), p.tags...) }

// Meta returns a metadata value.
func (p Post) Meta(key string) (any, bool) {
	v, ok := p.metadata[key]
	return v, ok
}

// MetaString returns a metadata value as a string, or def when absent.
func (p Post) MetaString(key, def string) string {
	if v, ok := p.metadata[key].(string); ok && v != "" {
		return v
	}
	return def
}
