package twitter

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
	"github.com/michimani/gotwi"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
)

const (
	providerName = publish.Twitter

	defaultAPIBase    = "https://api.x.com"
	defaultUploadBase = "https://upload.twitter.com"

	// TextLimit is the maximum weighted length of a tweet.
	TextLimit = 280
	// URLWeight is how many characters t.co counts for any link.
	URLWeight = 23
	// MaxMedia is the maximum number of attachments per tweet.
	MaxMedia = 4

	chunkSize        = 4 << 20
	maxStatusChecks  = 10
	defaultCheckWait = time.Second
)

// Config captures the credentials required for OAuth 1.0a user-context requests.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string

	APIBase    string
	UploadBase string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		APIKey:       creds.Get("consumer_key", ""),
		APISecret:    creds.Get("consumer_secret", ""),
		AccessToken:  creds.Get("access_token", ""),
		AccessSecret: creds.Get("access_token_secret", ""),
		APIBase:      creds.Get("api_base", defaultAPIBase),
		UploadBase:   creds.Get("upload_base", defaultUploadBase),
	}, nil
}

// Client implements publish.Platform for X (Twitter).
type Client struct {
	cfg  Config
	doer transport.Doer
	wait func(ctx context.Context, d time.Duration) error
}

// New constructs a Twitter platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.UploadBase == "" {
		cfg.UploadBase = defaultUploadBase
	}
	return &Client{cfg: cfg, doer: doer, wait: sleep}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the tweet text rules.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:  TextLimit,
		IncludeURL: true,
		URLWeight:  URLWeight,
		AppendTags: true,
		Ellipsis:   "…",
	})
}

// Publish uploads any media and creates the tweet.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	media := post.Media().All()
	if len(media) > MaxMedia {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("at most %d media per tweet, got %d", MaxMedia, len(media))}
	}

	var mediaIDs []string
	for i, item := range media {
		logutil.Debugf("uploading media: path=%s", item.Path)
		alt := ""
		if i == 0 {
			alt = opts.String("alt_text", "")
		}
		mediaID, err := c.uploadMedia(ctx, item, alt)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, mediaID)
		logutil.Debugf("media uploaded: media_id=%s", mediaID)
	}

	payload := NewFormatter().Format(post)
	if strings.TrimSpace(payload.Text) == "" && len(mediaIDs) == 0 {
		return nil, publish.ValidationError{Platform: providerName, Reason: "tweet needs text or media"}
	}

	input := &managetweettypes.CreateInput{}
	if payload.Text != "" {
		input.Text = gotwi.String(payload.Text)
	}
	if len(mediaIDs) > 0 {
		input.Media = &managetweettypes.CreateInputMedia{MediaIDs: mediaIDs}
	}
	if reply := opts.String("in_reply_to", ""); reply != "" {
		input.Reply = &managetweettypes.CreateInputReply{InReplyToTweetID: reply}
	}

	logutil.Debugf("posting tweet: media_count=%d", len(mediaIDs))
	return c.call(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.cfg.APIBase + "/2/tweets",
		JSON:   input,
	})
}

// call signs and sends req.
func (c *Client) call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	var params url.Values
	if len(req.Files) == 0 && req.JSON == nil {
		params = req.Form
	}
	if req.Method == http.MethodGet {
		params = req.Query
	}
	auth, err := c.authorize(req.Method, req.URL, params)
	if err != nil {
		return nil, err
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Authorization"] = auth
	return publish.Send(ctx, c.doer, providerName, req)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseResponse reports success for a 2xx answer carrying data.id.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var out managetweettypes.CreateOutput
	if resp.OK() {
		if err := resp.Decode(&out); err == nil && gotwi.StringValue(out.Data.ID) != "" {
			return gotwi.StringValue(out.Data.ID), nil
		}
	}
	return "", apiError(resp)
}

type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"errors"`
}

func apiError(resp *transport.Response) *publish.APIError {
	apiErr := &publish.APIError{Platform: providerName, Status: resp.Status}

	var body errorBody
	if err := resp.Decode(&body); err != nil {
		apiErr.Message = fmt.Sprintf("X API request failed (HTTP %d)", resp.Status)
		return apiErr
	}

	parts := make([]string, 0, 4)
	if body.Title != "" {
		parts = append(parts, body.Title)
	}
	if body.Detail != "" {
		parts = append(parts, body.Detail)
	}
	for _, e := range body.Errors {
		switch {
		case e.Message != "":
			parts = append(parts, e.Message)
		case e.Detail != "":
			parts = append(parts, e.Detail)
		}
		if apiErr.Code == "" && e.Code != 0 {
			apiErr.Code = strconv.Itoa(e.Code)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("X API request failed (HTTP %d)", resp.Status))
	}
	apiErr.Message = strings.Join(parts, "; ")
	return apiErr
}
