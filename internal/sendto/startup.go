package sendto

import (
	"fmt"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/publish/bluesky"
	"github.com/blacktop/sendto/internal/publish/discord"
	"github.com/blacktop/sendto/internal/publish/facebook"
	"github.com/blacktop/sendto/internal/publish/instagram"
	"github.com/blacktop/sendto/internal/publish/linkedin"
	"github.com/blacktop/sendto/internal/publish/mastodon"
	"github.com/blacktop/sendto/internal/publish/pinterest"
	"github.com/blacktop/sendto/internal/publish/reddit"
	"github.com/blacktop/sendto/internal/publish/slack"
	"github.com/blacktop/sendto/internal/publish/telegram"
	"github.com/blacktop/sendto/internal/publish/tumblr"
	"github.com/blacktop/sendto/internal/publish/twitter"
	"github.com/blacktop/sendto/internal/publish/whatsapp"
	"github.com/blacktop/sendto/internal/transport"
)

type constructor func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error)

var constructors = map[string]constructor{
	publish.Telegram: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := telegram.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return telegram.New(cfg, doer)
	},
	publish.Twitter: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := twitter.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return twitter.New(cfg, doer)
	},
	publish.Facebook: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := facebook.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return facebook.New(cfg, doer)
	},
	publish.LinkedIn: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := linkedin.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return linkedin.New(cfg, doer)
	},
	publish.Discord: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := discord.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return discord.New(cfg, doer)
	},
	publish.Slack: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := slack.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return slack.New(cfg, doer)
	},
	publish.Mastodon: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := mastodon.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return mastodon.New(cfg, doer)
	},
	publish.Bluesky: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := bluesky.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return bluesky.New(cfg, doer)
	},
	publish.Reddit: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := reddit.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return reddit.New(cfg, doer)
	},
	publish.Instagram: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := instagram.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return instagram.New(cfg, doer)
	},
	publish.Pinterest: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := pinterest.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return pinterest.New(cfg, doer)
	},
	publish.WhatsApp: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := whatsapp.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return whatsapp.New(cfg, doer)
	},
	publish.Tumblr: func(creds publish.Credentials, doer transport.Doer) (publish.Platform, error) {
		cfg, err := tumblr.ConfigFrom(creds)
		if err != nil {
			return nil, err
		}
		return tumblr.New(cfg, doer)
	},
}

// Option configures New.
type Option func(*settings)

type settings struct {
	doer        transport.Doer
	sink        publish.EventSink
	concurrency int
	only        []string
}

// WithDoer replaces the HTTP transport built from the proxy settings.
func WithDoer(doer transport.Doer) Option {
	return func(s *settings) { s.doer = doer }
}

// WithEventSink sets where publish events go.
func WithEventSink(sink publish.EventSink) Option {
	return func(s *settings) { s.sink = sink }
}

// WithConcurrency bounds the ToAll fan-out.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.concurrency = n }
}

// WithOnly restricts registration to the named platforms.
func WithOnly(names ...string) Option {
	return func(s *settings) { s.only = names }
}

// New builds the registry in two phases: it first settles which platforms
// are eligible from the validated configuration, then constructs exactly
// those adapters.
func New(cfg *publish.Config, opts ...Option) (*SendTo, error) {
	st := settings{}
	for _, opt := range opts {
		opt(&st)
	}

	eligible, err := eligiblePlatforms(cfg, st.only)
	if err != nil {
		return nil, err
	}

	doer := st.doer
	if doer == nil {
		client, err := transport.New(transport.WithProxy(cfg.Proxy))
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		doer = client
	}

	platforms := make([]publish.Platform, 0, len(eligible))
	for _, name := range eligible {
		creds, _ := cfg.Credentials(name)
		platform, err := constructors[name](creds, doer)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		logutil.Debugf("registered %s", name)
		platforms = append(platforms, platform)
	}

	registry, err := publish.NewRegistry(platforms...)
	if err != nil {
		return nil, err
	}

	return &SendTo{
		cfg:       cfg,
		publisher: publish.NewPublisher(registry, publish.WithEventSink(st.sink), publish.WithConcurrency(st.concurrency)),
	}, nil
}

func eligiblePlatforms(cfg *publish.Config, only []string) ([]string, error) {
	configured := cfg.Platforms()
	if len(only) == 0 {
		return configured, nil
	}

	want := make(map[string]bool, len(only))
	for _, name := range only {
		canonical, ok := publish.CanonicalName(name)
		if !ok {
			return nil, fmt.Errorf("unknown platform %q (supported: %s)", name, strings.Join(publish.SupportedPlatforms, ", "))
		}
		want[canonical] = true
	}

	var eligible []string
	for _, name := range configured {
		if want[name] {
			eligible = append(eligible, name)
		}
	}
	return eligible, nil
}

// Preview formats post the way platform would, without any network call.
func (s *SendTo) Preview(post content.Post, platform string, opts publish.Options) (format.Payload, error) {
	canonical, ok := publish.CanonicalName(platform)
	if !ok {
		return format.Payload{}, publish.PlatformNotFoundError{Platform: platform}
	}

	var f *format.Formatter
	switch canonical {
	case publish.Telegram:
		creds, _ := s.cfg.Credentials(publish.Telegram)
		f = telegram.NewFormatter(opts.String("parse_mode", creds.Get("parse_mode", "HTML")))
	case publish.Twitter:
		f = twitter.NewFormatter()
	case publish.Facebook:
		f = facebook.NewFormatter(facebook.PostType(post, opts))
	case publish.LinkedIn:
		f = linkedin.NewFormatter()
	case publish.Discord:
		f = discord.NewFormatter()
	case publish.Slack:
		f = slack.NewFormatter()
	case publish.Mastodon:
		f = mastodon.NewFormatter()
	case publish.Bluesky:
		f = bluesky.NewFormatter()
	case publish.Reddit:
		f = reddit.NewFormatter()
	case publish.Instagram:
		f = instagram.NewFormatter()
	case publish.Pinterest:
		f = pinterest.NewFormatter()
	case publish.WhatsApp:
		f = whatsapp.NewFormatter()
	case publish.Tumblr:
		f = tumblr.NewFormatter()
	}
	return f.Format(post), nil
}
