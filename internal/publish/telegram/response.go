package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/transport"
	"github.com/mymmrac/telego"
)

// envelope is the Bot API response wrapper.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// ParseResponse reports success when the envelope says ok and returns the
// message id. Media groups answer with an array; the first message id is
// used.
func (c *Client) ParseResponse(resp *transport.Response) (string, error) {
	var env envelope
	if err := resp.Decode(&env); err != nil {
		return "", &publish.APIError{Platform: providerName, Status: resp.Status, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if !env.OK {
		apiErr := &publish.APIError{Platform: providerName, Status: resp.Status, Message: env.Description}
		if env.ErrorCode != 0 {
			apiErr.Code = strconv.Itoa(env.ErrorCode)
		}
		return "", apiErr
	}
	return messageID(env.Result), nil
}

func messageID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var msg telego.Message
	if err := json.Unmarshal(raw, &msg); err == nil {
		if msg.MessageID != 0 {
			return strconv.Itoa(msg.MessageID)
		}
		return ""
	}
	var group []telego.Message
	if err := json.Unmarshal(raw, &group); err == nil && len(group) > 0 {
		return strconv.Itoa(group[0].MessageID)
	}
	return ""
}
