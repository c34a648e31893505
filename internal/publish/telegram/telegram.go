package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/mymmrac/telego"
)

const (
	providerName = publish.Telegram

	defaultBaseURL   = "https://api.telegram.org"
	defaultParseMode = "HTML"

	// TextLimit is the maximum length of a message text.
	TextLimit = 4096
	// CaptionLimit is the maximum length of a media caption.
	CaptionLimit = 1024
)

// Config captures the Bot API settings.
type Config struct {
	Token     string
	ChatID    string
	ParseMode string
	Signature string
	BaseURL   string
}

// ConfigFrom reads a Config from platform credentials.
func ConfigFrom(creds publish.Credentials) (Config, error) {
	if err := creds.Require(); err != nil {
		return Config{}, err
	}
	return Config{
		Token:     creds.Get("api_token", ""),
		ChatID:    creds.Get("channel_username", ""),
		ParseMode: creds.Get("parse_mode", defaultParseMode),
		Signature: creds.Get("channel_signature", ""),
		BaseURL:   creds.Get("base_url", defaultBaseURL),
	}, nil
}

// Client implements publish.Platform for the Telegram Bot API.
type Client struct {
	cfg  Config
	doer transport.Doer
}

// New constructs a Telegram platform.
func New(cfg Config, doer transport.Doer) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, publish.MissingCredentialsError{Platform: providerName, Keys: []string{"api_token"}}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = defaultParseMode
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// Config returns the client settings.
func (c *Client) Config() Config { return c.cfg }

// Publish sends post as a text message, a single media message or a media
// group depending on its attachments.
func (c *Client) Publish(ctx context.Context, post content.Post, opts publish.Options) (*transport.Response, error) {
	chatID, err := c.chatID(opts)
	if err != nil {
		return nil, err
	}
	parseMode := opts.String("parse_mode", c.cfg.ParseMode)
	payload := NewFormatter(parseMode).Format(post)

	switch media := post.Media(); media.Len() {
	case 0:
		form := url.Values{"chat_id": {chatID}, "text": {payload.Text}}
		setParseMode(form, parseMode)
		if opts.Bool("disable_web_page_preview") {
			form.Set("disable_web_page_preview", "true")
		}
		req := c.request("sendMessage", form)
		if err := applyCommon(req, opts, true); err != nil {
			return nil, err
		}
		return c.send(ctx, req)
	case 1:
		item, _ := media.First()
		return c.sendMedia(ctx, chatID, item, payload.Text, parseMode, opts)
	default:
		return c.sendMediaGroup(ctx, chatID, media.All(), payload.Text, parseMode, opts)
	}
}

func (c *Client) sendMedia(ctx context.Context, chatID string, item content.Media, caption, parseMode string, opts publish.Options) (*transport.Response, error) {
	method, field := mediaMethod(item)

	form := url.Values{"chat_id": {chatID}}
	if caption != "" {
		form.Set("caption", caption)
		setParseMode(form, parseMode)
	}
	for key, fallback := range map[string]int{"duration": item.Duration, "width": item.Width, "height": item.Height} {
		if v := opts.Int(key); v > 0 {
			form.Set(key, strconv.Itoa(v))
		} else if fallback > 0 {
			form.Set(key, strconv.Itoa(fallback))
		}
	}

	req := c.request(method, form)
	attachFile(req, field, item.Path, item.MimeType)
	if err := applyCommon(req, opts, true); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

type inputMedia struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func (c *Client) sendMediaGroup(ctx context.Context, chatID string, items []content.Media, caption, parseMode string, opts publish.Options) (*transport.Response, error) {
	if len(items) > 10 {
		return nil, publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("media group holds at most 10 items, got %d", len(items))}
	}

	req := c.request("sendMediaGroup", url.Values{"chat_id": {chatID}})
	group := make([]inputMedia, 0, len(items))
	for i, item := range items {
		entry := inputMedia{Type: groupType(item), Media: item.Path}
		if isLocalFile(item.Path) {
			name := fmt.Sprintf("file%d", i)
			entry.Media = "attach://" + name
			req.Files = append(req.Files, transport.File{Field: name, Path: item.Path, ContentType: item.MimeType})
		}
		if i == 0 && caption != "" {
			entry.Caption = caption
			if parseMode != "" && !strings.EqualFold(parseMode, "none") {
				entry.ParseMode = parseMode
			}
		}
		group = append(group, entry)
	}

	data, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("encode media group: %w", err)
	}
	req.Form.Set("media", string(data))
	if err := applyCommon(req, opts, false); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

func (c *Client) chatID(opts publish.Options) (string, error) {
	chatID := opts.String("chat_id", c.cfg.ChatID)
	if chatID == "" {
		return "", publish.ValidationError{Platform: providerName, Reason: "chat_id is required (set channel_username or pass chat_id)"}
	}
	return chatID, nil
}

func (c *Client) request(method string, form url.Values) *transport.Request {
	return &transport.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Token, method),
		Form:   form,
	}
}

func (c *Client) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	logutil.Debugf("telegram: calling %s", req.URL[strings.LastIndex(req.URL, "/")+1:])
	return publish.Send(ctx, c.doer, providerName, req)
}

// applyCommon adds the fields every send method accepts: silent delivery
// and, where the method allows one, an inline keyboard.
func applyCommon(req *transport.Request, opts publish.Options, allowKeyboard bool) error {
	if opts.Bool("disable_notification") {
		req.Form.Set("disable_notification", "true")
	}
	if !allowKeyboard || !opts.Has("inline_keyboard") {
		return nil
	}
	markup, err := keyboardMarkup(opts["inline_keyboard"])
	if err != nil {
		return err
	}
	req.Form.Set("reply_markup", markup)
	return nil
}

func keyboardMarkup(v any) (string, error) {
	var markup *telego.InlineKeyboardMarkup
	switch kb := v.(type) {
	case *telego.InlineKeyboardMarkup:
		markup = kb
	case telego.InlineKeyboardMarkup:
		markup = &kb
	case [][]telego.InlineKeyboardButton:
		markup = &telego.InlineKeyboardMarkup{InlineKeyboard: kb}
	default:
		return "", publish.ValidationError{Platform: providerName, Reason: fmt.Sprintf("unsupported inline keyboard type %T", v)}
	}
	data, err := json.Marshal(markup)
	if err != nil {
		return "", fmt.Errorf("encode inline keyboard: %w", err)
	}
	return string(data), nil
}

func setParseMode(form url.Values, parseMode string) {
	if parseMode != "" && !strings.EqualFold(parseMode, "none") {
		form.Set("parse_mode", parseMode)
	}
}

func mediaMethod(item content.Media) (method, field string) {
	switch {
	case item.IsImage():
		return "sendPhoto", "photo"
	case item.IsVideo():
		return "sendVideo", "video"
	case item.IsAudio():
		return "sendAudio", "audio"
	default:
		return "sendDocument", "document"
	}
}

func groupType(item content.Media) string {
	switch {
	case item.IsVideo():
		return "video"
	case item.IsAudio():
		return "audio"
	case item.IsImage():
		return "photo"
	default:
		return "document"
	}
}

// attachFile uploads local files as multipart parts; URLs and file ids are
// passed by reference.
func attachFile(req *transport.Request, field, path, mimeType string) {
	if isLocalFile(path) {
		req.Files = append(req.Files, transport.File{Field: field, Path: path, ContentType: mimeType})
		return
	}
	req.Form.Set(field, path)
}

func isLocalFile(path string) bool {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
