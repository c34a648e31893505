package bluesky

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
)

const (
	providerName = publish.Bluesky

	defaultPDSURL  = "https://bsky.social"
	postCollection = "app.bsky.feed.post"

	// TextLimit is the maximum post length in graphemes.
	TextLimit = 300
	// MaxImages is the maximum number of images per post.
	MaxImages = 4
)

// Config holds the account used to publish.
type Config struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		Handle:      creds.Get("handle", ""),
		AppPassword: creds.Get("app_password", ""),
		PDSURL:      creds.Get("pds_url", defaultPDSURL),
	}, nil
}

// Client implements publish.Platform for Bluesky.
type Client struct {
	cfg  Config
	doer transport.Doer
	now  func() time.Time
}

// New constructs a Bluesky platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.PDSURL == "" {
		cfg.PDSURL = defaultPDSURL
	}
	cfg.PDSURL = strings.TrimRight(cfg.PDSURL, "/")
	return &Client{cfg: cfg, doer: doer, now: time.Now}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the post text rules.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:  TextLimit,
		IncludeURL: true,
		AppendTags: true,
		Ellipsis:   "…",
	})
}

// Publish logs in, uploads images and creates the post record.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	media := post.Media().All()
	if len(media) > MaxImages {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("at most %d images per post, got %d", MaxImages, len(media))}
	}
	for _, item := range media {
		if item.MimeType != "" && !item.IsImage() {
			return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("unsupported media type %q", item.MimeType)}
		}
	}

	session, err := c.login(ctx)
	if err != nil {
		return nil, err
	}

	text := NewFormatter().Format(post).Text
	record := &bsky.FeedPost{
		LexiconTypeID: postCollection,
		CreatedAt:     c.now().UTC().Format(time.RFC3339),
		Text:          text,
		Facets:        facets(text),
	}
	if lang := opts.String("language", ""); lang != "" {
		record.Langs = []string{lang}
	}

	switch {
	case len(media) > 0:
		images := make([]*bsky.EmbedImages_Image, 0, len(media))
		for i, item := range media {
			blob, err := c.uploadBlob(ctx, session.AccessJwt, item)
			if err != nil {
				return nil, err
			}
			alt := ""
			if i == 0 {
				alt = opts.String("alt_text", "")
			}
			images = append(images, &bsky.EmbedImages_Image{Alt: alt, Image: blob})
		}
		record.Embed = &bsky.FeedPost_Embed{EmbedImages: &bsky.EmbedImages{Images: images}}
	case post.URL() != "":
		record.Embed = &bsky.FeedPost_Embed{EmbedExternal: &bsky.EmbedExternal{
			External: &bsky.EmbedExternal_External{
				Uri:         post.URL(),
				Title:       post.Title(),
				Description: post.MetaString("description", ""),
			},
		}}
	}

	logutil.Debugf("creating record: repo=%s images=%d", session.Did, len(media))
	return c.xrpc(ctx, session.AccessJwt, &transport.Request{
		Method: http.MethodPost,
		URL:    c.endpoint("com.atproto.repo.createRecord"),
		JSON: &atproto.RepoCreateRecord_Input{
			Collection: postCollection,
			Repo:       session.Did,
			Record:     &util.LexiconTypeDecoder{Val: record},
		},
	})
}

func (c *Client) login(ctx context.Context) (*atproto.ServerCreateSession_Output, error) {
	resp, err := c.xrpc(ctx, "", &transport.Request{
		Method: http.MethodPost,
		URL:    c.endpoint("com.atproto.server.createSession"),
		JSON: &atproto.ServerCreateSession_Input{
			Identifier: c.cfg.Handle,
			Password:   c.cfg.AppPassword,
		},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("login: %w", apiError(resp))
	}

	var session atproto.ServerCreateSession_Output
	if err := resp.Decode(&session); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if session.AccessJwt == "" || session.Did == "" {
		return nil, fmt.Errorf("login: session has no access token")
	}
	return &session, nil
}

func (c *Client) uploadBlob(ctx context.Context, token string, item content.Media) (*util.LexBlob, error) {
	data, err := publish.LoadMedia(ctx, c.doer, providerName, item.Path)
	if err != nil {
		return nil, err
	}
	mimeType := item.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	resp, err := c.xrpc(ctx, token, &transport.Request{
		Method:  http.MethodPost,
		URL:     c.endpoint("com.atproto.repo.uploadBlob"),
		Body:    data,
		Headers: map[string]string{"Content-Type": mimeType},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("upload blob: %w", apiError(resp))
	}

	var out atproto.RepoUploadBlob_Output
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if out.Blob == nil {
		return nil, fmt.Errorf("upload blob: empty response")
	}
	return out.Blob, nil
}

func (c *Client) endpoint(method string) string {
	return c.cfg.PDSURL + "/xrpc/" + method
}

func (c *Client) xrpc(ctx context.Context, token string, req *transport.Request) (*transport.Response, error) {
	if token != "" {
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers["Authorization"] = "Bearer " + token
	}
	return publish.Send(ctx, c.doer, providerName, req)
}

// ParseResponse reports success for a 2xx answer carrying the record uri.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	if !resp.OK() {
		return "", apiError(resp)
	}
	var out atproto.RepoCreateRecord_Output
	if err := resp.Decode(&out); err != nil || out.Uri == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no record uri"}
	}
	return out.Uri, nil
}

func apiError(resp *transport.Response) *publish.APIError {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	apiErr := &publish.APIError{Platform: providerName, Status: resp.Status}
	if err := resp.Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("bluesky request failed (HTTP %d)", resp.Status)
	}
	return apiErr
}
