package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

const (
	providerName = publish.Discord

	defaultAPIBase = "https://discord.com/api/v10"

	// TextLimit is the maximum message content length.
	TextLimit = 2000
	// MaxAttachments is the maximum number of files per message.
	MaxAttachments = 10
)

// Config holds the bot credentials and an optional webhook.
type Config struct {
	BotToken   string
	ChannelID  string
	WebhookURL string
	APIBase    string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		BotToken:   creds.Get("bot_token", ""),
		ChannelID:  creds.Get("channel_id", ""),
		WebhookURL: creds.Get("webhook_url", ""),
		APIBase:    creds.Get("api_base", defaultAPIBase),
	}, nil
}

// Client implements publish.Platform for Discord channels.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Discord platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the message content rules.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:    TextLimit,
		IncludeTitle: true,
		TitleStyle:   func(s string) string { return "**" + s + "**" },
		IncludeURL:   true,
		AppendTags:   true,
		Ellipsis:     "…",
	})
}

type message struct {
	Content  string `json:"content,omitempty"`
	Username string `json:"username,omitempty"`
	TTS      bool   `json:"tts,omitempty"`
	Flags    int    `json:"flags,omitempty"`
}

const flagSuppressNotifications = 1 << 12

// Publish sends a channel message through the bot API, or through the
// webhook when one is configured or passed as "webhook_url".
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	media := post.Media().All()
	if len(media) > MaxAttachments {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("at most %d attachments, got %d", MaxAttachments, len(media))}
	}

	msg := message{
		Content: NewFormatter().Format(post).Text,
		TTS:     opts.Bool("tts"),
	}
	if opts.Bool("disable_notification") {
		msg.Flags |= flagSuppressNotifications
	}
	if msg.Content == "" && len(media) == 0 {
		return nil, publish.ValidationError{Platform: providerName, Reason: "message needs content or attachments"}
	}

	req := &transport.Request{Method: http.MethodPost}
	if webhook := opts.String("webhook_url", c.cfg.WebhookURL); webhook != "" {
		msg.Username = opts.String("username", "")
		req.URL = webhook
		req.Query = url.Values{"wait": {"true"}}
	} else {
		channel := opts.String("channel_id", c.cfg.ChannelID)
		req.URL = fmt.Sprintf("%s/channels/%s/messages", strings.TrimRight(c.cfg.APIBase, "/"), channel)
		req.Headers = map[string]string{"Authorization": "Bot " + c.cfg.BotToken}
	}

	if len(media) == 0 {
		req.JSON = msg
	} else {
		if err := attachFiles(ctx, c.doer, req, msg, media); err != nil {
			return nil, err
		}
	}

	logutil.Debugf("discord: sending message attachments=%d", len(media))
	return publish.Send(ctx, c.doer, providerName, req)
}

// attachFiles builds a multipart message: the JSON payload travels in
// payload_json and each file as files[n].
func attachFiles(ctx context.Context, doer transport.Doer, req *transport.Request, msg message, media []content.Media) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req.Form = url.Values{"payload_json": {string(payload)}}
	for i, item := range media {
		data, err := publish.LoadMedia(ctx, doer, providerName, item.Path)
		if err != nil {
			return err
		}
		req.Files = append(req.Files, transport.File{
			Field:       fmt.Sprintf("files[%d]", i),
			Name:        fileName(item.Path, i),
			Data:        data,
			ContentType: item.MimeType,
		})
	}
	return nil
}

// ParseResponse reports success for a 2xx answer carrying the message id.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	decodeErr := resp.Decode(&body)
	if !resp.OK() {
		apiErr := &publish.APIError{Platform: providerName, Status: resp.Status, Message: body.Message}
		if body.Code != 0 {
			apiErr.Code = fmt.Sprint(body.Code)
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("discord request failed (HTTP %d)", resp.Status)
		}
		return "", apiErr
	}
	if decodeErr != nil || body.ID == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no message id"}
	}
	return body.ID, nil
}

func fileName(path string, i int) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 && idx < len(path)-1 {
		return strings.SplitN(path[idx+1:], "?", 2)[0]
	}
	if path != "" {
		return path
	}
	return fmt.Sprintf("file%d", i)
}
