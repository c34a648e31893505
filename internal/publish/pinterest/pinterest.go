package pinterest

import (
	"context"
	"encoding/base64"
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
	providerName = publish.Pinterest

	defaultAPIBase = "https://api.pinterest.com/v5"

	// DescriptionLimit is the maximum pin description length.
	DescriptionLimit = 500
	// TitleLimit is the maximum pin title length.
	TitleLimit = 100
)

// Config holds the OAuth token and the board pins go to.
type Config struct {
	AccessToken string
	BoardID     string
	APIBase     string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		AccessToken: creds.Get("access_token", ""),
		BoardID:     creds.Get("board_id", ""),
		APIBase:     creds.Get("api_base", defaultAPIBase),
	}, nil
}

// Client implements publish.Platform for Pinterest pins.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Pinterest platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the pin description rules. Title and link have
// their own pin fields.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:  DescriptionLimit,
		AppendTags: true,
		Ellipsis:   "…",
	})
}

type mediaSource struct {
	SourceType  string `json:"source_type"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"`
}

type pin struct {
	BoardID     string      `json:"board_id"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Link        string      `json:"link,omitempty"`
	AltText     string      `json:"alt_text,omitempty"`
	MediaSource mediaSource `json:"media_source"`
}

// Publish creates a pin from the first image. Remote images are passed by
// URL; local ones are inlined as base64.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	item, ok := post.Media().First()
	if !ok {
		return nil, publish.ValidationError{Platform: providerName, Reason: "pin needs an image"}
	}
	if item.MimeType != "" && !item.IsImage() {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("pin media must be an image, got %s", item.MimeType)}
	}

	p := pin{
		BoardID:     opts.String("board_id", c.cfg.BoardID),
		Title:       format.Truncate(strings.TrimSpace(post.Title()), TitleLimit),
		Description: NewFormatter().Format(post).Text,
		Link:        opts.String("link", post.URL()),
		AltText:     opts.String("alt_text", ""),
	}
	if publish.IsRemote(item.Path) {
		p.MediaSource = mediaSource{SourceType: "image_url", URL: item.Path}
	} else {
		data, err := publish.LoadMedia(ctx, c.doer, providerName, item.Path)
		if err != nil {
			return nil, err
		}
		contentType := item.MimeType
		if contentType == "" {
			contentType = content.MimeJPEG
		}
		p.MediaSource = mediaSource{SourceType: "image_base64", ContentType: contentType, Data: base64.StdEncoding.EncodeToString(data)}
	}

	logutil.Debugf("pinterest: creating pin on board %s source=%s", p.BoardID, p.MediaSource.SourceType)
	return publish.Send(ctx, c.doer, providerName, &transport.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(c.cfg.APIBase, "/") + "/pins",
		JSON:    p,
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.AccessToken},
	})
}

// ParseResponse returns the pin id.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		ID      string `json:"id"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	decodeErr := resp.Decode(&body)

	if !resp.OK() {
		apiErr := &publish.APIError{Platform: providerName, Status: resp.Status, Message: body.Message}
		if body.Code != 0 {
			apiErr.Code = fmt.Sprint(body.Code)
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("pinterest request failed (HTTP %d)", resp.Status)
		}
		return "", apiErr
	}
	if decodeErr != nil || body.ID == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no pin id"}
	}
	return body.ID, nil
}
