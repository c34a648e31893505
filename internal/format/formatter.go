// Package format adapts generic post content to per-platform text limits.
package format

import (
	"strings"

	"github.com/blacktop/sendto/internal/content"
)

const paragraph = "\n\n"

// Rules describes how a platform wants its text assembled.
type Rules struct {
	// MaxLength is the ceiling for a plain text post. Zero disables truncation.
	MaxLength int
	// CaptionLength is the ceiling used when the post carries media.
	// Zero falls back to MaxLength.
	CaptionLength int
	// IncludeTitle prepends the post title as its own paragraph.
	IncludeTitle bool
	// TitleStyle decorates the title, e.g. bold markup.
	TitleStyle func(string) string
	// IncludeURL appends the post URL unless the body already contains it.
	IncludeURL bool
	// URLWeight counts every link as this many characters (Twitter's t.co).
	URLWeight int
	// AppendTags appends post tags not already in the text as hashtags.
	AppendTags bool
	// Ellipsis marks truncated text.
	Ellipsis string
}

// Payload is the platform-legal text produced by a Formatter.
type Payload struct {
	Text      string
	Hashtags  []string
	Limit     int
	Truncated bool
}

// Formatter composes hashtag handling and truncation under a set of Rules.
// It keeps no state between calls.
type Formatter struct {
	rules Rules
}

// NewFormatter returns a formatter applying rules.
func NewFormatter(rules Rules) *Formatter {
	return &Formatter{rules: rules}
}

// Rules returns the formatter configuration.
func (f *Formatter) Rules() Rules { return f.rules }

// Limit returns the active ceiling for a post with or without media.
func (f *Formatter) Limit(hasMedia bool) int {
	if hasMedia && f.rules.CaptionLength > 0 {
		return f.rules.CaptionLength
	}
	return f.rules.MaxLength
}

// Format renders post under the formatter rules. The link and hashtags are
// kept intact while the title and body absorb any truncation; when even they
// do not fit, hashtags are dropped first and then the link.
func (f *Formatter) Format(post content.Post) Payload {
	var head []string
	if f.rules.IncludeTitle && strings.TrimSpace(post.Title()) != "" {
		title := strings.TrimSpace(post.Title())
		if f.rules.TitleStyle != nil {
			title = f.rules.TitleStyle(title)
		}
		head = append(head, title)
	}
	if body := strings.TrimSpace(post.Body()); body != "" {
		head = append(head, body)
	}
	headText := strings.Join(head, paragraph)

	link := ""
	if f.rules.IncludeURL && post.URL() != "" && !strings.Contains(headText, post.URL()) {
		link = post.URL()
	}

	var tags []string
	if f.rules.AppendTags {
		tags = MissingHashtags(headText, post.Tags())
	}

	limit := f.Limit(post.HasMedia())
	payload := Payload{Limit: limit}

	if limit > 0 {
		for f.tailLen(link, tags) > limit-1 && (len(tags) > 0 || link != "") {
			if len(tags) > 0 {
				tags = nil
			} else {
				link = ""
			}
			payload.Truncated = true
		}
	}

	tail := joinNonEmpty(link, strings.Join(tags, " "))
	if limit > 0 {
		room := limit - f.tailLen(link, tags)
		if tail != "" && headText != "" {
			room -= Len(paragraph)
		}
		if Len(headText) > room {
			headText = TruncateWithEllipsis(headText, room, f.rules.Ellipsis)
			payload.Truncated = true
		}
	}

	payload.Text = joinNonEmpty(headText, tail)
	payload.Hashtags = tags
	return payload
}

func (f *Formatter) tailLen(link string, tags []string) int {
	n := 0
	if link != "" {
		n += Len(link)
		if f.rules.URLWeight > 0 {
			n = f.rules.URLWeight
		}
	}
	if len(tags) > 0 {
		if n > 0 {
			n += Len(paragraph)
		}
		n += Len(strings.Join(tags, " "))
	}
	return n
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, paragraph)
}

// AppendSignature appends signature after a blank line. When the result
// would exceed max characters the text is shortened instead, so the
// signature always survives. A signature that cannot fit next to any text
// is returned alone, cut to max. A max of zero disables the ceiling.
func AppendSignature(text, signature string, max int) string {
	if signature == "" {
		return text
	}
	suffix := paragraph + signature
	if max > 0 && Len(text)+Len(suffix) > max {
		room := max - Len(suffix)
		if room <= 0 {
			return Truncate(signature, max)
		}
		text = Truncate(text, room)
	}
	return text + suffix
}
