package twitter

import (
	"fmt"
	"net/url"

	"github.com/michimani/gotwi"
)

const oauth1HeaderFormat = `OAuth oauth_consumer_key="%s", oauth_nonce="%s", oauth_signature="%s", oauth_signature_method="%s", oauth_timestamp="%s", oauth_token="%s", oauth_version="%s"`

// authorize returns the OAuth 1.0a user-context Authorization header for a
// request. params holds form-encoded body values; JSON and multipart bodies
// are not part of the signature base.
func (c *Client) authorize(method, endpoint string, params url.Values) (string, error) {
	paramMap := make(map[string]string, len(params))
	for k := range params {
		paramMap[k] = params.Get(k)
	}

	out, err := gotwi.CreateOAuthSignature(&gotwi.CreateOAuthSignatureInput{
		HTTPMethod:       method,
		RawEndpoint:      endpoint,
		OAuthConsumerKey: c.cfg.APIKey,
		OAuthToken:       c.cfg.AccessToken,
		SigningKey:       url.QueryEscape(c.cfg.APISecret) + "&" + url.QueryEscape(c.cfg.AccessSecret),
		ParameterMap:     paramMap,
	})
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}

	return fmt.Sprintf(oauth1HeaderFormat,
		url.QueryEscape(c.cfg.APIKey),
		url.QueryEscape(out.OAuthNonce),
		url.QueryEscape(out.OAuthSignature),
		url.QueryEscape(out.OAuthSignatureMethod),
		url.QueryEscape(out.OAuthTimestamp),
		url.QueryEscape(c.cfg.AccessToken),
		url.QueryEscape(out.OAuthVersion),
	), nil
}
