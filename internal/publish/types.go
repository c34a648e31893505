// Package publish resolves platforms, sends posts to them and normalizes
// the outcome into a Result.
package publish

import (
	"context"
	"errors"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/transport"
)

// Platform abstracts a social network that can publish content.
type Platform interface {
	// Name returns the stable platform identifier, e.g. "telegram".
	Name() string
	// Publish formats post and performs the network call(s). Validation and
	// transport failures are returned as errors; any answer from the
	// platform itself is returned as a Response for ParseResponse.
	Publish(ctx context.Context, post content.Post, opts Options) (*transport.Response, error)
	// ParseResponse applies the platform's success rules and extracts the
	// identifier of the created post. Rejections are returned as *APIError.
	ParseResponse(resp *transport.Response) (string, error)
}

// Send performs req over doer on behalf of platform, wrapping network
// failures in a TransportError.
func Send(ctx context.Context, doer transport.Doer, platform string, req *transport.Request) (*transport.Response, error) {
	resp, err := doer.Do(ctx, req)
	if err != nil {
		return nil, &TransportError{Platform: platform, Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Platform: platform, Err: errEmptyResponse}
	}
	return resp, nil
}

var errEmptyResponse = errors.New("empty response")
