package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

const (
	providerName = publish.Instagram

	defaultGraphBase    = "https://graph.facebook.com"
	defaultGraphVersion = "v21.0"

	// CaptionLimit is the maximum caption length.
	CaptionLimit = 2200
	// MaxCarousel is the number of items a carousel post can hold.
	MaxCarousel = 10

	maxStatusChecks = 10
	statusInterval  = 3 * time.Second
)

// Config holds the Graph API credentials of the business account.
type Config struct {
	AccessToken  string
	AccountID    string
	GraphVersion string
	GraphBase    string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		AccessToken:  creds.Get("access_token", ""),
		AccountID:    creds.Get("instagram_account_id", ""),
		GraphVersion: creds.Get("default_graph_version", defaultGraphVersion),
		GraphBase:    creds.Get("graph_base", defaultGraphBase),
	}, nil
}

// Client implements publish.Platform for Instagram business accounts.
type Client struct {
	cfg  Config
	doer transport.Doer
	wait func(context.Context, time.Duration) error
}

// New constructs an Instagram platform.
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
	return &Client{cfg: cfg, doer: doer, wait: sleep}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the caption rules. Links are not clickable in
// captions but are kept as text.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:    CaptionLimit,
		IncludeTitle: true,
		IncludeURL:   true,
		AppendTags:   true,
		Ellipsis:     "…",
	})
}

// Publish creates a media container (a carousel for several items), waits
// for video processing and publishes it. Media must be public URLs.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	items := post.Media().All()
	switch {
	case len(items) == 0:
		return nil, publish.ValidationError{Platform: providerName, Reason: "post needs an image or a video"}
	case len(items) > MaxCarousel:
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("carousel holds at most %d items, got %d", MaxCarousel, len(items))}
	}
	for _, item := range items {
		if !publish.IsRemote(item.Path) {
			return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("media must be a public URL, got %q", item.Path)}
		}
	}
	caption := NewFormatter().Format(post).Text

	var containerID string
	if len(items) == 1 {
		form := mediaForm(items[0])
		if caption != "" {
			form.Set("caption", caption)
		}
		if alt := opts.String("alt_text", ""); alt != "" && items[0].IsImage() {
			form.Set("alt_text", alt)
		}
		id, err := c.createContainer(ctx, form)
		if err != nil {
			return nil, err
		}
		if items[0].IsVideo() {
			if err := c.waitReady(ctx, id); err != nil {
				return nil, err
			}
		}
		containerID = id
	} else {
		children := make([]string, 0, len(items))
		for _, item := range items {
			form := mediaForm(item)
			form.Set("is_carousel_item", "true")
			id, err := c.createContainer(ctx, form)
			if err != nil {
				return nil, err
			}
			if item.IsVideo() {
				if err := c.waitReady(ctx, id); err != nil {
					return nil, err
				}
			}
			children = append(children, id)
		}
		form := url.Values{"media_type": {"CAROUSEL"}, "children": {strings.Join(children, ",")}}
		if caption != "" {
			form.Set("caption", caption)
		}
		id, err := c.createContainer(ctx, form)
		if err != nil {
			return nil, err
		}
		containerID = id
	}

	logutil.Debugf("instagram: publishing container %s", containerID)
	return c.call(ctx, http.MethodPost, c.endpoint(c.cfg.AccountID, "media_publish"), url.Values{"creation_id": {containerID}})
}

func mediaForm(item content.Media) url.Values {
	if item.IsVideo() {
		return url.Values{"media_type": {"REELS"}, "video_url": {item.Path}}
	}
	return url.Values{"image_url": {item.Path}}
}

func (c *Client) createContainer(ctx context.Context, form url.Values) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, c.endpoint(c.cfg.AccountID, "media"), form)
	if err != nil {
		return "", err
	}
	id, err := c.ParseResponse(resp)
	if err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	logutil.Debugf("instagram: container %s created", id)
	return id, nil
}

// waitReady polls a video container until processing finishes.
func (c *Client) waitReady(ctx context.Context, id string) error {
	for range maxStatusChecks {
		resp, err := c.call(ctx, http.MethodGet, c.endpoint(id, ""), url.Values{"fields": {"status_code"}})
		if err != nil {
			return err
		}
		var body struct {
			StatusCode string `json:"status_code"`
		}
		if err := resp.Decode(&body); err != nil {
			return fmt.Errorf("container status: %w", err)
		}
		switch body.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return &publish.APIError{Platform: providerName, Status: resp.Status, Code: body.StatusCode, Message: "media processing failed"}
		}
		if err := c.wait(ctx, statusInterval); err != nil {
			return err
		}
	}
	return &publish.APIError{Platform: providerName, Message: "media processing timed out"}
}

func (c *Client) endpoint(node, edge string) string {
	u := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.GraphBase, "/"), c.cfg.GraphVersion, node)
	if edge != "" {
		u += "/" + edge
	}
	return u
}

// call sends the access token in the body for POST and in the query for GET.
func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values) (*transport.Response, error) {
	req := &transport.Request{Method: method, URL: endpoint}
	params.Set("access_token", c.cfg.AccessToken)
	if method == http.MethodGet {
		req.Query = params
	} else {
		req.Form = params
	}
	return publish.Send(ctx, c.doer, providerName, req)
}

// ParseResponse returns the id of a container or of the published media.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		ID    string `json:"id"`
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
			apiErr.Message = fmt.Sprintf("graph API request failed (HTTP %d)", resp.Status)
		}
		return "", apiErr
	}
	if decodeErr != nil || body.ID == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no id"}
	}
	return body.ID, nil
}
