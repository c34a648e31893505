// Package sendto is the entry point for publishing: it builds the platform
// registry from configuration and maps ergonomic per-platform calls onto
// posts, options and adapter operations.
package sendto

import (
	"context"
	"fmt"
	"maps"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/publish/telegram"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/mymmrac/telego"
)

// SendTo publishes to the platforms of one configuration.
type SendTo struct {
	cfg       *publish.Config
	publisher *publish.Publisher
}

// Publisher returns the underlying publisher.
func (s *SendTo) Publisher() *publish.Publisher { return s.publisher }

// Platforms returns the registered platform names in registration order.
func (s *SendTo) Platforms() []string { return s.publisher.Registry().Names() }

// Publish sends post to platform.
func (s *SendTo) Publish(ctx context.Context, post content.Post, platform string, opts publish.Options) publish.Result {
	if canonical, ok := publish.CanonicalName(platform); ok {
		platform = canonical
	}
	return s.publisher.Publish(ctx, post, platform, opts)
}

// ToAll sends post to every registered platform.
func (s *SendTo) ToAll(ctx context.Context, post content.Post, opts publish.Options) map[string]publish.Result {
	return s.publisher.ToAll(ctx, post, opts)
}

// ToMany sends post to the named platforms.
func (s *SendTo) ToMany(ctx context.Context, post content.Post, platforms []string, opts publish.Options) map[string]publish.Result {
	names := make([]string, 0, len(platforms))
	for _, name := range platforms {
		if canonical, ok := publish.CanonicalName(name); ok {
			name = canonical
		}
		names = append(names, name)
	}
	return s.publisher.ToMany(ctx, post, names, opts)
}

// Telegram sends message with an optional attachment and inline keyboard.
// Location, venue, contact and voice attachments use their own Bot API
// methods; everything else becomes a text, media or media group post with
// the channel signature appended.
func (s *SendTo) Telegram(ctx context.Context, message string, attachment Attachment, keyboard *telego.InlineKeyboardMarkup, opts publish.Options) publish.Result {
	creds, _ := s.cfg.Credentials(publish.Telegram)

	base := publish.Options{}
	if keyboard != nil {
		base["inline_keyboard"] = keyboard
	}

	switch a := attachment.(type) {
	case Location, Venue, Contact, Voice:
		return s.telegramExtended(ctx, message, a, base.Merge(opts))
	case Unsupported:
		return s.unsupported(ctx, publish.Telegram, a.Type)
	case nil, Photo, Video, Audio, Document, MediaGroup:
	default:
		return s.unsupported(ctx, publish.Telegram, TypeOf(a))
	}

	if signature := creds.Get("channel_signature", ""); signature != "" {
		limit := telegram.TextLimit
		if attachment != nil {
			limit = telegram.CaptionLimit
		}
		message = format.AppendSignature(message, signature, limit)
	}

	base["parse_mode"] = creds.Get("parse_mode", "HTML")
	var postOpts []content.PostOption
	if media, ok := mediaFor(attachment); ok {
		postOpts = append(postOpts, content.WithMedia(media))
		if first, ok := media.First(); ok {
			for key, v := range map[string]int{"duration": first.Duration, "width": first.Width, "height": first.Height} {
				if v > 0 {
					base[key] = v
				}
			}
		}
	}

	return s.publisher.Publish(ctx, content.NewPost(message, postOpts...), publish.Telegram, base.Merge(opts))
}

func (s *SendTo) telegramExtended(ctx context.Context, message string, attachment Attachment, opts publish.Options) publish.Result {
	return s.publisher.Run(ctx, publish.Telegram, func(ctx context.Context, platform publish.Platform) (*transport.Response, error) {
		tg, ok := platform.(*telegram.Client)
		if !ok {
			return nil, fmt.Errorf("telegram: registered platform is %T", platform)
		}

		switch a := attachment.(type) {
		case Location:
			if a.LivePeriod > 0 {
				opts = opts.Merge(publish.Options{"live_period": a.LivePeriod})
			}
			return tg.SendLocation(ctx, a.Latitude, a.Longitude, opts)
		case Venue:
			return tg.SendVenue(ctx, a.Latitude, a.Longitude, a.Title, a.Address, opts)
		case Contact:
			if a.LastName != "" {
				opts = opts.Merge(publish.Options{"last_name": a.LastName})
			}
			return tg.SendContact(ctx, a.PhoneNumber, a.FirstName, opts)
		case Voice:
			return tg.SendVoice(ctx, content.Media{Path: a.File, MimeType: content.MimeOGG, Duration: a.Duration}, message, opts)
		default:
			return nil, publish.UnsupportedAttachmentError{Platform: publish.Telegram, Type: TypeOf(attachment)}
		}
	})
}

func (s *SendTo) unsupported(ctx context.Context, platform, typ string) publish.Result {
	return s.publisher.Run(ctx, platform, func(context.Context, publish.Platform) (*transport.Response, error) {
		return nil, publish.UnsupportedAttachmentError{Platform: platform, Type: typ}
	})
}

// Twitter posts a tweet with up to four media items.
func (s *SendTo) Twitter(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Twitter, message, media, opts)
}

// X is an alias for Twitter.
func (s *SendTo) X(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.Twitter(ctx, message, media, opts)
}

// Facebook posts to the page. postType is link, photo or video; data holds
// the matching "link", "photo" or "video" value plus an optional "title".
func (s *SendTo) Facebook(ctx context.Context, message, postType string, data map[string]string, opts publish.Options) publish.Result {
	if postType == "" {
		postType = "link"
	}

	postOpts := []content.PostOption{
		content.WithTitle(data["title"]),
		content.WithURL(data["link"]),
	}
	meta := make(map[string]any, len(data))
	for k, v := range data {
		meta[k] = v
	}
	postOpts = append(postOpts, content.WithMetadata(meta))

	switch {
	case postType == "photo" && data["photo"] != "":
		postOpts = append(postOpts, content.WithMedia(content.NewMediaCollection(content.Media{Path: data["photo"], MimeType: content.MimeJPEG})))
	case postType == "video" && data["video"] != "":
		postOpts = append(postOpts, content.WithMedia(content.NewMediaCollection(content.Media{Path: data["video"], MimeType: content.MimeMP4})))
	}

	return s.publisher.Publish(ctx, content.NewPost(message, postOpts...), publish.Facebook, publish.Options{"type": postType}.Merge(opts))
}

// LinkedIn creates a share.
func (s *SendTo) LinkedIn(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.LinkedIn, message, media, opts)
}

// Discord posts a channel message.
func (s *SendTo) Discord(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Discord, message, media, opts)
}

// Slack posts a channel message.
func (s *SendTo) Slack(ctx context.Context, message string, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Slack, message, nil, opts)
}

// Mastodon posts a status.
func (s *SendTo) Mastodon(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Mastodon, message, media, opts)
}

// Bluesky creates a post record.
func (s *SendTo) Bluesky(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Bluesky, message, media, opts)
}

func (s *SendTo) publishMessage(ctx context.Context, platform, message string, media []MediaItem, opts publish.Options) publish.Result {
	var postOpts []content.PostOption
	if collection := mediaCollection(media); collection != nil {
		postOpts = append(postOpts, content.WithMedia(collection))
	}
	return s.publisher.Publish(ctx, content.NewPost(message, postOpts...), platform, maps.Clone(opts))
}

// Reddit submits a self post, or a link post when opts carries "url". The
// title comes from opts "title" or the first line of message.
func (s *SendTo) Reddit(ctx context.Context, message string, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Reddit, message, nil, opts)
}

// Instagram publishes a single image, a reel or a carousel from public URLs.
func (s *SendTo) Instagram(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.Instagram, message, media, opts)
}

// Pinterest creates a pin. data holds the required "image" plus optional
// "link" and "title" values.
func (s *SendTo) Pinterest(ctx context.Context, message string, data map[string]string, opts publish.Options) publish.Result {
	postOpts := []content.PostOption{
		content.WithTitle(data["title"]),
		content.WithURL(data["link"]),
	}
	if data["image"] != "" {
		postOpts = append(postOpts, content.WithMedia(content.NewMediaCollection(content.Media{Path: data["image"], MimeType: content.MimeJPEG})))
	}
	return s.publisher.Publish(ctx, content.NewPost(message, postOpts...), publish.Pinterest, maps.Clone(opts))
}

// WhatsApp sends a Cloud API message to opts "to" or the configured
// recipient.
func (s *SendTo) WhatsApp(ctx context.Context, message string, opts publish.Options) publish.Result {
	return s.publishMessage(ctx, publish.WhatsApp, message, nil, opts)
}

// Tumblr creates a post on the configured blog; opts "title" becomes a
// heading block.
func (s *SendTo) Tumblr(ctx context.Context, message string, media []MediaItem, opts publish.Options) publish.Result {
	postOpts := []content.PostOption{content.WithTitle(opts.String("title", ""))}
	if collection := mediaCollection(media); collection != nil {
		postOpts = append(postOpts, content.WithMedia(collection))
	}
	return s.publisher.Publish(ctx, content.NewPost(message, postOpts...), publish.Tumblr, maps.Clone(opts))
}
