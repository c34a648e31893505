package linkedin

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
	providerName = publish.LinkedIn

	defaultAPIBase  = "https://api.linkedin.com"
	restliProtocol  = "2.0.0"
	shareContentKey = "com.linkedin.ugc.ShareContent"
	visibilityKey   = "com.linkedin.ugc.MemberNetworkVisibility"

	// TextLimit is the maximum length of share commentary.
	TextLimit = 3000
)

// Config holds the member or organization token.
type Config struct {
	AccessToken string
	// Author is a person or organization URN. When empty the token owner is
	// looked up before posting.
	Author     string
	Visibility string
	APIBase    string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	author := creds.Get("author_urn", "")
	if author == "" {
		if org := creds.Get("organization_id", ""); org != "" {
			author = "urn:li:organization:" + org
		} else if person := creds.Get("person_id", ""); person != "" {
			author = "urn:li:person:" + person
		}
	}
	return Config{
		AccessToken: creds.Get("access_token", ""),
		Author:      author,
		Visibility:  creds.Get("visibility", "PUBLIC"),
		APIBase:     creds.Get("api_base", defaultAPIBase),
	}, nil
}

// Client implements publish.Platform for LinkedIn shares.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a LinkedIn platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Visibility == "" {
		cfg.Visibility = "PUBLIC"
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the share commentary rules. Links are attached as an
// article, so they are not inlined.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:    TextLimit,
		IncludeTitle: true,
		AppendTags:   true,
		Ellipsis:     "…",
	})
}

type text struct {
	Text string `json:"text"`
}

type shareMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
	Title       *text  `json:"title,omitempty"`
	Description *text  `json:"description,omitempty"`
}

type shareContent struct {
	ShareCommentary    text         `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
	Media              []shareMedia `json:"media,omitempty"`
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

// Publish creates a UGC share, attaching the post URL as an article.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	author := opts.String("author", c.cfg.Author)
	if author == "" {
		var err error
		if author, err = c.lookupAuthor(ctx); err != nil {
			return nil, err
		}
	}

	share := shareContent{
		ShareCommentary:    text{Text: NewFormatter().Format(post).Text},
		ShareMediaCategory: "NONE",
	}
	if link := post.URL(); link != "" {
		media := shareMedia{Status: "READY", OriginalURL: link}
		if post.Title() != "" {
			media.Title = &text{Text: post.Title()}
		}
		if desc := post.MetaString("description", ""); desc != "" {
			media.Description = &text{Text: desc}
		}
		share.ShareMediaCategory = "ARTICLE"
		share.Media = []shareMedia{media}
	}
	if share.ShareCommentary.Text == "" && len(share.Media) == 0 {
		return nil, publish.ValidationError{Platform: providerName, Reason: "share needs text or a link"}
	}

	logutil.Debugf("linkedin: creating share author=%s category=%s", author, share.ShareMediaCategory)
	return c.send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.cfg.APIBase + "/v2/ugcPosts",
		JSON: ugcPost{
			Author:          author,
			LifecycleState:  "PUBLISHED",
			SpecificContent: map[string]shareContent{shareContentKey: share},
			Visibility:      map[string]string{visibilityKey: strings.ToUpper(opts.String("visibility", c.cfg.Visibility))},
		},
	})
}

func (c *Client) lookupAuthor(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, &transport.Request{Method: http.MethodGet, URL: c.cfg.APIBase + "/v2/userinfo"})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("lookup author: %w", apiError(resp))
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := resp.Decode(&info); err != nil || info.Sub == "" {
		return "", publish.ValidationError{Platform: providerName, Reason: "cannot determine author; set author_urn"}
	}
	return "urn:li:person:" + info.Sub, nil
}

func (c *Client) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	req.Headers = map[string]string{
		"Authorization":             "Bearer " + c.cfg.AccessToken,
		"X-Restli-Protocol-Version": restliProtocol,
	}
	return publish.Send(ctx, c.doer, providerName, req)
}

// ParseResponse reports success for a 2xx answer. The share URN comes from
// the x-restli-id header, or the body id when the header is absent.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	if !resp.OK() {
		return "", apiError(resp)
	}
	if id := resp.Header.Get("X-Restli-Id"); id != "" {
		return id, nil
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&body); err != nil || body.ID == "" {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no share id"}
	}
	return body.ID, nil
}

func apiError(resp *transport.Response) *publish.APIError {
	var body struct {
		Message     string `json:"message"`
		ServiceCode int    `json:"serviceErrorCode"`
	}
	apiErr := &publish.APIError{Platform: providerName, Status: resp.Status}
	if err := resp.Decode(&body); err == nil {
		apiErr.Message = body.Message
		if body.ServiceCode != 0 {
			apiErr.Code = fmt.Sprint(body.ServiceCode)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("linkedin request failed (HTTP %d)", resp.Status)
	}
	return apiErr
}
