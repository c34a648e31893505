// Package transport is the HTTP capability every platform adapter sends its
// requests through.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// File is one multipart upload part. Path is read when the request is sent;
// Data is used when Path is empty.
type File struct {
	Field       string
	Name        string
	Path        string
	Data        []byte
	ContentType string
}

// Request describes a single API call. At most one of Files, JSON, Form or
// Body is used, in that order of precedence; Form values travel alongside
// Files as regular multipart fields.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Form    url.Values
	JSON    any
	Files   []File
	Body    []byte
	Headers map[string]string
}

// Response is the transport-level outcome of a request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Doer sends requests. Implementations must be safe for concurrent use.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f DoerFunc) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// Redact hides credentials embedded in URLs (Telegram bot tokens, webhook
// tokens, query strings) so URLs can be logged or reported.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, "bot") && strings.Contains(seg, ":"):
			segments[i] = "bot***"
		case seg == "webhooks" && i+2 < len(segments) && segments[i+2] != "":
			segments[i+2] = "***"
		}
	}
	u.Path = strings.Join(segments, "/")
	u.RawPath = u.Path
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
