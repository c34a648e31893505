package telegram

import (
	"context"
	"net/url"
	"strconv"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

// SendLocation shares a map point. A live_period option makes it a live
// location.
func (c *Client) SendLocation(ctx context.Context, lat, lon float64, opts publish.Options) (*transport.Response, error) {
	chatID, err := c.chatID(opts)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"chat_id":   {chatID},
		"latitude":  {formatCoord(lat)},
		"longitude": {formatCoord(lon)},
	}
	if period := opts.Int("live_period"); period > 0 {
		form.Set("live_period", strconv.Itoa(period))
	}
	req := c.request("sendLocation", form)
	if err := applyCommon(req, opts, true); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

// SendVenue shares a named place.
func (c *Client) SendVenue(ctx context.Context, lat, lon float64, title, address string, opts publish.Options) (*transport.Response, error) {
	if title == "" || address == "" {
		return nil, publish.ValidationError{Platform: providerName, Reason: "venue requires title and address"}
	}
	chatID, err := c.chatID(opts)
	if err != nil {
		return nil, err
	}
	req := c.request("sendVenue", url.Values{
		"chat_id":   {chatID},
		"latitude":  {formatCoord(lat)},
		"longitude": {formatCoord(lon)},
		"title":     {title},
		"address":   {address},
	})
	if err := applyCommon(req, opts, true); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

// SendContact shares a phone contact.
func (c *Client) SendContact(ctx context.Context, phone, firstName string, opts publish.Options) (*transport.Response, error) {
	if phone == "" || firstName == "" {
		return nil, publish.ValidationError{Platform: providerName, Reason: "contact requires phone_number and first_name"}
	}
	chatID, err := c.chatID(opts)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"chat_id":      {chatID},
		"phone_number": {phone},
		"first_name":   {firstName},
	}
	if last := opts.String("last_name", ""); last != "" {
		form.Set("last_name", last)
	}
	req := c.request("sendContact", form)
	if err := applyCommon(req, opts, true); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

// SendVoice sends an OGG/OPUS voice note with an optional caption.
func (c *Client) SendVoice(ctx context.Context, voice content.Media, caption string, opts publish.Options) (*transport.Response, error) {
	if voice.Path == "" {
		return nil, publish.ValidationError{Platform: providerName, Reason: "voice requires a file"}
	}
	chatID, err := c.chatID(opts)
	if err != nil {
		return nil, err
	}
	form := url.Values{"chat_id": {chatID}}
	if caption != "" {
		form.Set("caption", caption)
		setParseMode(form, opts.String("parse_mode", c.cfg.ParseMode))
	}
	duration := voice.Duration
	if d := opts.Int("duration"); d > 0 {
		duration = d
	}
	if duration > 0 {
		form.Set("duration", strconv.Itoa(duration))
	}
	mimeType := voice.MimeType
	if mimeType == "" {
		mimeType = content.MimeOGG
	}
	req := c.request("sendVoice", form)
	attachFile(req, "voice", voice.Path, mimeType)
	if err := applyCommon(req, opts, true); err != nil {
		return nil, err
	}
	return c.send(ctx, req)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
