package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

const (
	providerName = publish.Slack

	defaultAPIBase = "https://slack.com/api"

	// TextLimit is the maximum message text length.
	TextLimit = 40000
)

// Config holds the bot token and default channel.
type Config struct {
	BotToken string
	Channel  string
	APIBase  string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		BotToken: creds.Get("bot_token", ""),
		Channel:  creds.Get("channel", ""),
		APIBase:  creds.Get("api_base", defaultAPIBase),
	}, nil
}

// Client implements publish.Platform for Slack.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Slack platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the mrkdwn message rules.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:    TextLimit,
		IncludeTitle: true,
		TitleStyle:   func(s string) string { return "*" + s + "*" },
		IncludeURL:   true,
		AppendTags:   true,
		Ellipsis:     "…",
	})
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type     string      `json:"type"`
	Text     *textObject `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	AltText  string      `json:"alt_text,omitempty"`
}

type postMessage struct {
	Channel     string  `json:"channel"`
	Text        string  `json:"text"`
	Blocks      []block `json:"blocks,omitempty"`
	ThreadTS    string  `json:"thread_ts,omitempty"`
	UnfurlLinks bool    `json:"unfurl_links"`
	Mrkdwn      bool    `json:"mrkdwn"`
}

// Publish calls chat.postMessage. Remote images are rendered as image
// blocks; local files are not supported.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	text := NewFormatter().Format(post).Text
	msg := postMessage{
		Channel:     opts.String("channel", c.cfg.Channel),
		Text:        text,
		ThreadTS:    opts.String("thread_ts", ""),
		UnfurlLinks: !opts.Bool("disable_web_page_preview"),
		Mrkdwn:      true,
	}

	for _, item := range post.Media().All() {
		if !publish.IsRemote(item.Path) || (item.MimeType != "" && !item.IsImage()) {
			return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("only image URLs can be attached, got %q", item.Path)}
		}
		if len(msg.Blocks) == 0 && text != "" {
			msg.Blocks = append(msg.Blocks, block{Type: "section", Text: &textObject{Type: "mrkdwn", Text: text}})
		}
		msg.Blocks = append(msg.Blocks, block{Type: "image", ImageURL: item.Path, AltText: opts.String("alt_text", "image")})
	}
	if strings.TrimSpace(msg.Text) == "" && len(msg.Blocks) == 0 {
		return nil, publish.ValidationError{Platform: providerName, Reason: "message needs text"}
	}

	logutil.Debugf("slack: posting to channel=%s blocks=%d", msg.Channel, len(msg.Blocks))
	return publish.Send(ctx, c.doer, providerName, &transport.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(c.cfg.APIBase, "/") + "/chat.postMessage",
		JSON:    msg,
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.BotToken},
	})
}

// ParseResponse reports success when the body says ok and returns the
// message timestamp.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: fmt.Sprintf("slack request failed (HTTP %d)", resp.Status)}
	}
	if !body.OK {
		msg := body.Error
		if msg == "" {
			msg = "unknown_error"
		}
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Code: body.Error, Message: msg}
	}
	return body.TS, nil
}
