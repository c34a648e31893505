package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/blacktop/sendto/internal/transport"
)

// IsRemote reports whether path is an http(s) URL.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// LoadMedia returns the bytes behind a local path or a remote URL. Remote
// files are fetched through doer so proxy settings apply.
func LoadMedia(ctx context.Context, doer transport.Doer, platform, path string) ([]byte, error) {
	if !IsRemote(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, ValidationError{Platform: platform, Reason: fmt.Sprintf("media %q not found", path)}
			}
			return nil, fmt.Errorf("read media: %w", err)
		}
		return data, nil
	}

	resp, err := Send(ctx, doer, platform, &transport.Request{Method: http.MethodGet, URL: path})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, ValidationError{Platform: platform, Reason: fmt.Sprintf("fetch media %q: HTTP %d", path, resp.Status)}
	}
	return resp.Body, nil
}
