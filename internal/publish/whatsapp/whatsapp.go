package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

const (
	providerName = publish.WhatsApp

	defaultGraphBase    = "https://graph.facebook.com"
	defaultGraphVersion = "v21.0"

	// TextLimit is the maximum text message body length.
	TextLimit = 4096
	// CaptionLimit is the maximum media caption length.
	CaptionLimit = 1024
)

// Config holds the Cloud API sender and an optional default recipient.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	Recipient     string
	GraphVersion  string
	GraphBase     string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		AccessToken:   creds.Get("access_token", ""),
		PhoneNumberID: creds.Get("phone_number_id", ""),
		Recipient:     creds.Get("recipient", ""),
		GraphVersion:  creds.Get("default_graph_version", defaultGraphVersion),
		GraphBase:     creds.Get("graph_base", defaultGraphBase),
	}, nil
}

// Client implements publish.Platform for the WhatsApp Cloud API.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a WhatsApp platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = defaultGraphVersion
	}
	if !strings.HasPrefix(cfg.GraphVersion, "v") {
		cfg.GraphVersion = "v" + cfg.GraphVersion
	}
	if cfg.GraphBase == "" {
		cfg.GraphBase = defaultGraphBase
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the message rules; titles are bolded with WhatsApp
// markup.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:     TextLimit,
		CaptionLength: CaptionLimit,
		IncludeTitle:  true,
		TitleStyle:    func(s string) string { return "*" + s + "*" },
		IncludeURL:    true,
		AppendTags:    true,
		Ellipsis:      "…",
	})
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type mediaBody struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type message struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *textBody  `json:"text,omitempty"`
	Image            *mediaBody `json:"image,omitempty"`
	Video            *mediaBody `json:"video,omitempty"`
	Audio            *mediaBody `json:"audio,omitempty"`
	Document         *mediaBody `json:"document,omitempty"`
}

// Publish sends a text message, or a media message captioned with the text
// when the post has a media URL. The recipient comes from the "to" option
// or the configured default.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	to := strings.TrimPrefix(opts.String("to", c.cfg.Recipient), "+")
	if to == "" {
		return nil, publish.ValidationError{Platform: providerName, Reason: "recipient is required (set recipient or pass to)"}
	}
	text := NewFormatter().Format(post).Text

	msg := message{MessagingProduct: "whatsapp", RecipientType: "individual", To: to}
	if item, ok := post.Media().First(); ok {
		if !publish.IsRemote(item.Path) {
			return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("media must be a public URL, got %q", item.Path)}
		}
		body := &mediaBody{Link: item.Path, Caption: text}
		switch {
		case item.IsImage():
			msg.Type, msg.Image = "image", body
		case item.IsVideo():
			msg.Type, msg.Video = "video", body
		case item.IsAudio():
			body.Caption = ""
			msg.Type, msg.Audio = "audio", body
		default:
			body.Filename = item.Path[strings.LastIndex(item.Path, "/")+1:]
			msg.Type, msg.Document = "document", body
		}
	} else {
		if strings.TrimSpace(text) == "" {
			return nil, publish.ValidationError{Platform: providerName, Reason: "message needs text"}
		}
		msg.Type = "text"
		msg.Text = &textBody{Body: text, PreviewURL: !opts.Bool("disable_web_page_preview")}
	}

	logutil.Debugf("whatsapp: sending %s message", msg.Type)
	return publish.Send(ctx, c.doer, providerName, &transport.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.cfg.GraphBase, "/"), c.cfg.GraphVersion, c.cfg.PhoneNumberID),
		JSON:    msg,
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.AccessToken},
	})
}

// ParseResponse returns the wamid of the accepted message.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	decodeErr := resp.Decode(&body)

	if body.Error != nil || !resp.OK() {
		apiErr := &publish.APIError{Platform: providerName, Status: resp.Status}
		if body.Error != nil {
			apiErr.Message = body.Error.Message
			if body.Error.Code != 0 {
				apiErr.Code = strconv.Itoa(body.Error.Code)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("cloud API request failed (HTTP %d)", resp.Status)
		}
		return "", apiErr
	}
	if decodeErr != nil || len(body.Messages) == 0 || body.Messages[0].ID == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no message id"}
	}
	return body.Messages[0].ID, nil
}
