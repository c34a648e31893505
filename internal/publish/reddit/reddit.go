package reddit

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
)

const (
	providerName = publish.Reddit

	defaultAPIBase = "https://oauth.reddit.com"

	// TitleLimit is the maximum submission title length.
	TitleLimit = 300
	// TextLimit is the maximum self post body length.
	TextLimit = 40000
)

// Config holds the OAuth2 app and account credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	Username     string
	Subreddit    string
	APIBase      string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		ClientID:     creds.Get("client_id", ""),
		ClientSecret: creds.Get("client_secret", ""),
		AccessToken:  creds.Get("access_token", ""),
		Username:     creds.Get("username", ""),
		Subreddit:    creds.Get("subreddit", ""),
		APIBase:      creds.Get("api_base", defaultAPIBase),
	}, nil
}

// Client implements publish.Platform for Reddit submissions.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Reddit platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// NewFormatter returns the self post body rules. The title is submitted in
// its own field and link posts carry the URL there too.
func NewFormatter() *format.Formatter {
	return format.NewFormatter(format.Rules{
		MaxLength:  TextLimit,
		AppendTags: true,
		Ellipsis:   "…",
	})
}

// Publish submits a link post when the post has a URL and a self post
// otherwise. The subreddit comes from the "subreddit" option, the
// configured default, or the account's own profile.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	title := strings.TrimSpace(opts.String("title", post.Title()))
	if title == "" {
		title = firstLine(post.Body())
	}
	if title == "" {
		return nil, publish.ValidationError{Platform: providerName, Reason: "submission needs a title"}
	}

	subreddit := strings.TrimPrefix(opts.String("subreddit", c.cfg.Subreddit), "r/")
	if subreddit == "" {
		subreddit = "u_" + c.cfg.Username
	}

	form := url.Values{
		"api_type": {"json"},
		"sr":       {subreddit},
		"title":    {format.Truncate(title, TitleLimit)},
	}
	if link := opts.String("url", post.URL()); link != "" {
		form.Set("kind", "link")
		form.Set("url", link)
		form.Set("resubmit", "true")
	} else {
		form.Set("kind", "self")
		form.Set("text", NewFormatter().Format(post).Text)
	}
	if flair := opts.String("flair_id", ""); flair != "" {
		form.Set("flair_id", flair)
	}
	if opts.Bool("nsfw") {
		form.Set("nsfw", "true")
	}
	if opts.Bool("spoiler") {
		form.Set("spoiler", "true")
	}

	logutil.Debugf("reddit: submitting %s post to r/%s", form.Get("kind"), subreddit)
	return publish.Send(ctx, c.doer, providerName, &transport.Request{
		Method: http.MethodPost,
		URL:    strings.TrimRight(c.cfg.APIBase, "/") + "/api/submit",
		Form:   form,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.cfg.AccessToken,
			"User-Agent":    fmt.Sprintf("sendto:%s:v1 (by /u/%s)", c.cfg.ClientID, c.cfg.Username),
		},
	})
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

// ParseResponse returns the fullname (t3_...) of the new submission. Reddit
// reports validation failures in json.errors with a 200 status.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var body struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"data"`
		} `json:"json"`
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	decodeErr := resp.Decode(&body)

	if !resp.OK() {
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("reddit request failed (HTTP %d)", resp.Status)
		}
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: msg}
	}
	if decodeErr != nil {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: decodeErr.Error()}
	}
	if len(body.JSON.Errors) > 0 {
		apiErr := &publish.APIError{Platform: providerName, Status: resp.Status}
		var msgs []string
		for _, e := range body.JSON.Errors {
			if len(e) > 0 && apiErr.Code == "" {
				apiErr.Code = fmt.Sprint(e[0])
			}
			if len(e) > 1 {
				msgs = append(msgs, fmt.Sprint(e[1]))
			}
		}
		apiErr.Message = strings.Join(msgs, "; ")
		if apiErr.Message == "" {
			apiErr.Message = apiErr.Code
		}
		return "", apiErr
	}

	switch {
	case body.JSON.Data.Name != "":
		return body.JSON.Data.Name, nil
	case body.JSON.Data.ID != "":
		return body.JSON.Data.ID, nil
	}
	return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: "response has no submission id"}
}
