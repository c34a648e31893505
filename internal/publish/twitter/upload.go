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
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
)

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	Error          *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type uploadResponse struct {
	MediaIDString  string          `json:"media_id_string"`
	ProcessingInfo *processingInfo `json:"processing_info,omitempty"`
}

func (c *Client) uploadEndpoint() string {
	return c.cfg.UploadBase + "/1.1/media/upload.json"
}

// uploadMedia uploads one attachment and returns its media id. Still images
// use the simple upload; video and GIFs use the chunked flow.
func (c *Client) uploadMedia(ctx context.Context, item content.Media, altText string) (string, error) {
	data, err := publish.LoadMedia(ctx, c.doer, providerName, item.Path)
	if err != nil {
		return "", err
	}
	mimeType := item.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	var mediaID string
	if strings.HasPrefix(mimeType, "image/") && mimeType != "image/gif" {
		mediaID, err = c.simpleUpload(ctx, data, mimeType)
	} else {
		mediaID, err = c.chunkedUpload(ctx, data, mimeType)
	}
	if err != nil {
		return "", err
	}

	if alt := strings.TrimSpace(altText); alt != "" {
		logutil.Debugf("setting alt text: media_id=%s", mediaID)
		if err := c.setAltText(ctx, mediaID, alt); err != nil {
			return "", err
		}
	}
	return mediaID, nil
}

func (c *Client) simpleUpload(ctx context.Context, data []byte, mimeType string) (string, error) {
	resp, err := c.call(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.uploadEndpoint(),
		Form:   url.Values{"media_category": {"tweet_image"}},
		Files:  []transport.File{{Field: "media", Name: "media", Data: data, ContentType: mimeType}},
	})
	if err != nil {
		return "", err
	}
	out, err := decodeUpload(resp, "upload media")
	if err != nil {
		return "", err
	}
	return out.MediaIDString, nil
}

func (c *Client) chunkedUpload(ctx context.Context, data []byte, mimeType string) (string, error) {
	category := "tweet_video"
	if mimeType == "image/gif" {
		category = "tweet_gif"
	}

	logutil.Debugf("initialize upload: media_type=%s bytes=%d", mimeType, len(data))
	resp, err := c.call(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.uploadEndpoint(),
		Form: url.Values{
			"command":        {"INIT"},
			"total_bytes":    {strconv.Itoa(len(data))},
			"media_type":     {mimeType},
			"media_category": {category},
		},
	})
	if err != nil {
		return "", err
	}
	initOut, err := decodeUpload(resp, "initialize upload")
	if err != nil {
		return "", err
	}
	mediaID := initOut.MediaIDString

	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+chunkSize {
		end := min(offset+chunkSize, len(data))
		logutil.Debugf("append upload: media_id=%s segment=%d", mediaID, segment)
		resp, err := c.call(ctx, &transport.Request{
			Method: http.MethodPost,
			URL:    c.uploadEndpoint(),
			Form: url.Values{
				"command":       {"APPEND"},
				"media_id":      {mediaID},
				"segment_index": {strconv.Itoa(segment)},
			},
			Files: []transport.File{{Field: "media", Name: "media", Data: data[offset:end], ContentType: "application/octet-stream"}},
		})
		if err != nil {
			return "", err
		}
		if !resp.OK() {
			return "", apiError(resp)
		}
	}

	resp, err = c.call(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.uploadEndpoint(),
		Form:   url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}},
	})
	if err != nil {
		return "", err
	}
	finalOut, err := decodeUpload(resp, "finalize upload")
	if err != nil {
		return "", err
	}

	if err := c.awaitProcessing(ctx, mediaID, finalOut.ProcessingInfo); err != nil {
		return "", err
	}
	return mediaID, nil
}

func (c *Client) awaitProcessing(ctx context.Context, mediaID string, info *processingInfo) error {
	for check := 0; info != nil; check++ {
		logutil.Debugf("processing state=%s media_id=%s", info.State, mediaID)
		switch info.State {
		case "", "succeeded":
			return nil
		case "failed":
			reason := "unknown error"
			if info.Error != nil && info.Error.Message != "" {
				reason = info.Error.Message
			}
			return publish.ValidationError{Platform: providerName, Reason: "media processing failed: " + reason}
		}
		if check >= maxStatusChecks {
			return publish.ValidationError{Platform: providerName, Reason: "media processing timed out"}
		}

		wait := time.Duration(info.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = defaultCheckWait
		}
		if err := c.wait(ctx, wait); err != nil {
			return err
		}

		resp, err := c.call(ctx, &transport.Request{
			Method: http.MethodGet,
			URL:    c.uploadEndpoint(),
			Query:  url.Values{"command": {"STATUS"}, "media_id": {mediaID}},
		})
		if err != nil {
			return err
		}
		out, err := decodeUpload(resp, "media status")
		if err != nil {
			return err
		}
		info = out.ProcessingInfo
	}
	return nil
}

func (c *Client) setAltText(ctx context.Context, mediaID, altText string) error {
	body := struct {
		MediaID string `json:"media_id"`
		AltText struct {
			Text string `json:"text"`
		} `json:"alt_text"`
	}{MediaID: mediaID}
	body.AltText.Text = altText

	resp, err := c.call(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.cfg.UploadBase + "/1.1/media/metadata/create.json",
		JSON:   body,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("set alt text: %w", apiError(resp))
	}
	return nil
}

func decodeUpload(resp *transport.Response, step string) (uploadResponse, error) {
	var out uploadResponse
	if !resp.OK() {
		return out, fmt.Errorf("%s: %w", step, apiError(resp))
	}
	if err := resp.Decode(&out); err != nil {
		return out, fmt.Errorf("%s: %w", step, err)
	}
	if out.MediaIDString == "" {
		return out, fmt.Errorf("%s: response has no media_id_string", step)
	}
	return out, nil
}
