package tumblr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

const (
	providerName = publish.Tumblr

	defaultAPIBase = "https://api.tumblr.com/v2"
)

var validStates = map[string]bool{"published": true, "draft": true, "queue": true, "private": true}

// Config holds the OAuth2 token and the target blog.
type Config struct {
	AccessToken    string
	BlogIdentifier string
	APIBase        string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		AccessToken:    creds.Get("access_token", ""),
		BlogIdentifier: creds.Get("blog_identifier", ""),
		APIBase:        creds.Get("api_base", defaultAPIBase),
	}, nil
}

// Client implements publish.Platform for Tumblr Neue Post Format posts.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Tumblr platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the text block rules. The title gets its own heading
// block and tags travel as post tags, so neither is folded into the text.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		IncludeURL: true,
	})
}

type mediaObject struct {
	URL        string `json:"url,omitempty"`
	Type       string `json:"type,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

type block struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text,omitempty"`
	// Media is a list for image blocks and a single object for video and
	// audio blocks.
	Media   any    `json:"media,omitempty"`
	AltText string `json:"alt_text,omitempty"`
}

type npfPost struct {
	Content []block `json:"content"`
	State   string  `json:"state,omitempty"`
	Tags    string  `json:"tags,omitempty"`
	Slug    string  `json:"slug,omitempty"`
}

// Publish creates an NPF post. Remote media is referenced by URL; local
// files are uploaded as multipart parts named by their block identifier.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	state := opts.String("state", "published")
	if !validStates[state] {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("unknown post state %q", state)}
	}
	blog := opts.String("blog_identifier", c.cfg.BlogIdentifier)

	p := npfPost{State: state, Tags: strings.Join(post.Tags(), ","), Slug: opts.String("slug", "")}
	if title := strings.TrimSpace(post.Title()); title != "" {
		p.Content = append(p.Content, block{Type: "text", Subtype: "heading1", Text: title})
	}
	if text := NewFormatter().Format(post).Text; strings.TrimSpace(text) != "" {
		p.Content = append(p.Content, block{Type: "text", Text: text})
	}

	req := &transport.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/blog/%s/posts", strings.TrimRight(c.cfg.APIBase, "/"), url.PathEscape(blog)),
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.AccessToken},
	}
	altText := opts.String("alt_text", "")
	for i, item := range post.Media().All() {
		obj := mediaObject{URL: item.Path}
		if !publish.IsRemote(item.Path) {
			data, err := publish.LoadMedia(ctx, c.doer, providerName, item.Path)
			if err != nil {
				return nil, err
			}
			id := fmt.Sprintf("media-%d", i)
			obj = mediaObject{Type: item.MimeType, Identifier: id}
			req.Files = append(req.Files, transport.File{
				Field: id, Name: filepath.Base(item.Path), Data: data, ContentType: item.MimeType,
			})
		}
		switch {
		case item.IsImage():
			p.Content = append(p.Content, block{Type: "image", Media: []mediaObject{obj}, AltText: altText})
		case item.IsVideo():
			p.Content = append(p.Content, block{Type: "video", Media: obj})
		case item.IsAudio():
			p.Content = append(p.Content, block{Type: "audio", Media: obj})
		default:
			return nil, publish.UnsupportedAttachmentError{Platform: providerName, Type: item.MimeType}
		}
	}
	if len(p.Content) == 0 {
		return nil, publish.ValidationError{Platform: providerName, Reason: "post has no content"}
	}

	if len(req.Files) > 0 {
		payload, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		req.Form = url.Values{"json": {string(payload)}}
	} else {
		req.JSON = p
	}

	logutil.Debugf("tumblr: creating %s post on %s blocks=%d uploads=%d", state, blog, len(p.Content), len(req.Files))
	return publish.Send(ctx, c.doer, providerName, req)
}

// ParseResponse returns the new post id.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		Meta struct {
			Status int    `json:"status"`
			Msg    string `json:"msg"`
		} `json:"meta"`
		Response struct {
			IDString string `json:"id_string"`
		} `json:"response"`
		Errors []struct {
			Title  string `json:"title"`
			Code   int    `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	decodeErr := resp.Decode(&body)

	if !resp.OK() || len(body.Errors) > 0 {
		apiErr := &publish.APIError{Platform: providerName, Status: resp.Status, Message: body.Meta.Msg}
		if len(body.Errors) > 0 {
			if body.Errors[0].Detail != "" {
				apiErr.Message = body.Errors[0].Detail
			}
			if body.Errors[0].Code != 0 {
				apiErr.Code = fmt.Sprint(body.Errors[0].Code)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("post creation failed (HTTP %d)", resp.Status)
		}
		return "", apiErr
	}
	if decodeErr != nil || body.Response.IDString == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no post id"}
	}
	return body.Response.IDString, nil
}
