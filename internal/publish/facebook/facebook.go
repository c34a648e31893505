package facebook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/format"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

const (
	providerName = publish.Facebook

	defaultGraphBase    = "https://graph.facebook.com"
	defaultGraphVersion = "v21.0"

	// TextLimit is the maximum length of a page post.
	TextLimit = 63206
)

// Post types selected with the "type" option.
const (
	TypeLink  = "link"
	TypePhoto = "photo"
	TypeVideo = "video"
)

// Config captures the Graph API page credentials.
type Config struct {
	AppID           string
	AppSecret       string
	PageAccessToken string
	PageID          string
	GraphVersion    string
	GraphBase       string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		AppID:           creds.Get("app_id", ""),
		AppSecret:       creds.Get("app_secret", ""),
		PageAccessToken: creds.Get("page_access_token", ""),
		PageID:          creds.Get("page_id", ""),
		GraphVersion:    creds.Get("default_graph_version", defaultGraphVersion),
		GraphBase:       creds.Get("graph_base", defaultGraphBase),
	}, nil
}

// Client implements publish.Platform for Facebook pages.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Facebook platform.
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

// NewFormatter returns the page post rules. Links travel in their own
// field, so the URL is only inlined for photo and video posts.
func NewFormatter(postType string) *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:    TextLimit,
		IncludeTitle: true,
		IncludeURL:   postType != TypeLink,
		AppendTags:   true,
		Ellipsis:     "…",
	})
}

// PostType resolves the Graph edge for post: the explicit "type" option, or
// one inferred from the first attachment.
func PostType(post content.Post, opts publish.Options) string {
	if t := strings.ToLower(opts.String("type", "")); t != "" {
		return t
	}
	if item, ok := post.Media().First(); ok {
		if item.IsVideo() {
			return TypeVideo
		}
		return TypePhoto
	}
	return TypeLink
}

// Publish posts to the page feed, photos or videos edge.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	postType := PostType(post, opts)
	text := NewFormatter(postType).Format(post).Text

	form := url.Values{}
	var files []transport.File
	var edge string

	switch postType {
	case TypeLink:
		edge = "feed"
		link := opts.String("link", post.URL())
		if text == "" && link == "" {
			return nil, publish.ValidationError{Platform: providerName, Reason: "link post needs a message or a link"}
		}
		if text != "" {
			form.Set("message", text)
		}
		if link != "" {
			form.Set("link", link)
		}
	case TypePhoto:
		edge = "photos"
		item, ok := post.Media().First()
		if !ok {
			return nil, publish.ValidationError{Platform: providerName, Reason: "photo post needs an image"}
		}
		if text != "" {
			form.Set("caption", text)
		}
		files = attach(form, "url", item)
	case TypeVideo:
		edge = "videos"
		item, ok := post.Media().First()
		if !ok {
			return nil, publish.ValidationError{Platform: providerName, Reason: "video post needs a video"}
		}
		if text != "" {
			form.Set("description", text)
		}
		if title := post.Title(); title != "" {
			form.Set("title", title)
		}
		files = attach(form, "file_url", item)
	default:
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("unknown post type %q", postType)}
	}

	if opts.Has("published") && !opts.Bool("published") {
		form.Set("published", "false")
	}
	if at := opts.Int("scheduled_publish_time"); at > 0 {
		form.Set("published", "false")
		form.Set("scheduled_publish_time", strconv.Itoa(at))
	}
	form.Set("access_token", c.cfg.PageAccessToken)
	form.Set("appsecret_proof", AppSecretProof(c.cfg.AppSecret, c.cfg.PageAccessToken))

	endpoint := fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(c.cfg.GraphBase, "/"), c.cfg.GraphVersion, c.cfg.PageID, edge)
	logutil.Debugf("facebook: posting to %s edge type=%s", edge, postType)
	return publish.Send(ctx, c.doer, providerName, &transport.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Form:   form,
		Files:  files,
	})
}

// attach sends local files as a multipart "source" part and anything else
// by reference in field.
func attach(form url.Values, field string, item content.Media) []transport.File {
	if !publish.IsRemote(item.Path) {
		if info, err := os.Stat(item.Path); err == nil && !info.IsDir() {
			return []transport.File{{Field: "source", Path: item.Path, ContentType: item.MimeType}}
		}
	}
	form.Set(field, item.Path)
	return nil
}

// AppSecretProof is the hex HMAC-SHA256 of the access token keyed with the
// app secret.
func AppSecretProof(appSecret, accessToken string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseResponse reports success for a 2xx answer with an id. Photo posts
// prefer post_id, the id of the feed story, over the photo object id.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
		Error  *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
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
	if decodeErr != nil {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: decodeErr.Error()}
	}

	if body.PostID != "" {
		return body.PostID, nil
	}
	if body.ID != "" {
		return body.ID, nil
	}
	return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no id"}
}
