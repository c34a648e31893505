package mastodon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/google/uuid"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	providerName = publish.Mastodon

	// TextLimit is the default status length of a Mastodon instance.
	TextLimit = 500
	// MaxMedia is the maximum number of attachments per status.
	MaxMedia = 4
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server      string
	AccessToken string
	Visibility  string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		Server:      creds.Get("server", ""),
		AccessToken: creds.Get("access_token", ""),
		Visibility:  creds.Get("visibility", mastodonapi.VisibilityPublic),
	}, nil
}

// Client implements publish.Platform for Mastodon.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Mastodon platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	server := strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if server == "" {
		return nil, publish.MissingCredentialsError{Platform: providerName, Keys: []string{"server"}}
	}
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	if _, err := url.Parse(server); err != nil {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("invalid server %q", cfg.Server)}
	}
	cfg.Server = server
	if cfg.Visibility == "" {
		cfg.Visibility = mastodonapi.VisibilityPublic
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the status text rules.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:    TextLimit,
		IncludeTitle: true,
		IncludeURL:   true,
		AppendTags:   true,
		Ellipsis:     "…",
	})
}

type statusInput struct {
	Status      string           `json:"status,omitempty"`
	MediaIDs    []mastodonapi.ID `json:"media_ids,omitempty"`
	InReplyToID mastodonapi.ID   `json:"in_reply_to_id,omitempty"`
	Sensitive   bool             `json:"sensitive,omitempty"`
	SpoilerText string           `json:"spoiler_text,omitempty"`
	Visibility  string           `json:"visibility,omitempty"`
	Language    string           `json:"language,omitempty"`
}

// Publish uploads attachments and posts a new status.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	media := post.Media().All()
	if len(media) > MaxMedia {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("at most %d attachments per status, got %d", MaxMedia, len(media))}
	}

	var mediaIDs []mastodonapi.ID
	for i, item := range media {
		alt := ""
		if i == 0 {
			alt = opts.String("alt_text", "")
		}
		attachment, err := c.uploadMedia(ctx, item, alt)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, attachment.ID)
	}

	input := statusInput{
		Status:      NewFormatter().Format(post).Text,
		MediaIDs:    mediaIDs,
		InReplyToID: mastodonapi.ID(opts.String("in_reply_to", "")),
		Sensitive:   opts.Bool("sensitive"),
		SpoilerText: opts.String("spoiler_text", ""),
		Visibility:  opts.String("visibility", c.cfg.Visibility),
		Language:    opts.String("language", ""),
	}
	if input.Status == "" && len(mediaIDs) == 0 {
		return nil, publish.ValidationError{Platform: providerName, Reason: "status needs text or media"}
	}

	logutil.Debugf("posting status: media_count=%d visibility=%s", len(mediaIDs), input.Visibility)
	return c.send(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     c.cfg.Server + "/api/v1/statuses",
		JSON:    input,
		Headers: map[string]string{"Idempotency-Key": uuid.NewString()},
	})
}

func (c *Client) uploadMedia(ctx context.Context, item content.Media, alt string) (*mastodonapi.Attachment, error) {
	data, err := publish.LoadMedia(ctx, c.doer, providerName, item.Path)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	if alt != "" {
		form.Set("description", alt)
	}
	resp, err := c.send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.cfg.Server + "/api/v2/media",
		Form:   form,
		Files:  []transport.File{{Field: "file", Name: fileName(item.Path), Data: data, ContentType: item.MimeType}},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("upload media: %w", apiError(resp))
	}

	var attachment mastodonapi.Attachment
	if err := resp.Decode(&attachment); err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	if attachment.ID == "" {
		return nil, fmt.Errorf("upload media: response has no id")
	}
	return &attachment, nil
}

func (c *Client) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = "Bearer " + c.cfg.AccessToken
	return publish.Send(ctx, c.doer, providerName, req)
}

// ParseResponse reports success for a 2xx answer carrying the status id.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	if !resp.OK() {
		return "", apiError(resp)
	}
	var status mastodonapi.Status
	if err := resp.Decode(&status); err != nil {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: err.Error()}
	}
	if status.ID == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no status id"}
	}
	return string(status.ID), nil
}

func apiError(resp *transport.Response) *publish.APIError {
	var body struct {
		Error string `json:"error"`
	}
	apiErr := &publish.APIError{Platform: providerName, Status: resp.Status}
	if err := resp.Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = fmt.Sprintf("mastodon request failed (HTTP %d)", resp.Status)
	}
	return apiErr
}

func fileName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 && i < len(path)-1 {
		return strings.SplitN(path[i+1:], "?", 2)[0]
	}
	return "media"
}
