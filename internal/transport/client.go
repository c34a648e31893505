package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blacktop/sendto/internal/logutil"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "sendto/1"
	maxResponseBytes = 10 << 20
)

// ProxyConfig describes an optional outbound proxy applied to every request.
type ProxyConfig struct {
	Type     string `yaml:"type"`
	Hostname string `yaml:"hostname"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether enough settings are present to use the proxy.
func (p ProxyConfig) Enabled() bool {
	return strings.TrimSpace(p.Hostname) != "" && strings.TrimSpace(p.Port) != ""
}

// URL builds the proxy URL. Type accepts http, https, socks5, socks5h and
// the numeric curl code 7 for SOCKS5; empty means http.
func (p ProxyConfig) URL() (*url.URL, error) {
	var scheme string
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "", "0", "http":
		scheme = "http"
	case "https":
		scheme = "https"
	case "7", "socks5":
		scheme = "socks5"
	case "socks5h":
		scheme = "socks5h"
	default:
		return nil, fmt.Errorf("unsupported proxy type %q", p.Type)
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(strings.TrimSpace(p.Hostname), strings.TrimSpace(p.Port)),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u, nil
}

// Client is the default Doer, backed by a pooled net/http client.
type Client struct {
	http      *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client) error

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.http.Timeout = d
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// WithProxy routes every request through the given proxy. A config that is
// not Enabled is ignored.
func WithProxy(cfg ProxyConfig) Option {
	return func(c *Client) error {
		if !cfg.Enabled() {
			return nil
		}
		proxyURL, err := cfg.URL()
		if err != nil {
			return err
		}
		tr, ok := c.http.Transport.(*http.Transport)
		if !ok {
			return fmt.Errorf("proxy requires an *http.Transport")
		}
		tr.Proxy = http.ProxyURL(proxyURL)
		logutil.Debugf("using %s proxy %s", proxyURL.Scheme, proxyURL.Host)
		return nil
	}
}

// WithHTTPClient replaces the underlying client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.http = hc
		return nil
	}
}

// New constructs a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		http: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   defaultTimeout,
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("configure transport: %w", err)
		}
	}
	return c, nil
}

// Do sends req and returns the raw response. Only network level failures
// are returned as errors; any HTTP status is a valid Response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	logutil.Debugf("http request: method=%s url=%s", method, Redact(target))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		// url.Error repeats the raw URL, token included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%s %s: %w", method, Redact(target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logutil.Debugf("http response: status=%d bytes=%d", resp.StatusCode, len(data))

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func encodeBody(req *Request) (io.Reader, string, error) {
	switch {
	case len(req.Files) > 0:
		return encodeMultipart(req.Form, req.Files)
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	case req.Form != nil:
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		return bytes.NewReader(req.Body), "", nil
	}
	return nil, "", nil
}

func encodeMultipart(form url.Values, files []File) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for key, values := range form {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}

	for _, f := range files {
		data := f.Data
		name := f.Name
		if f.Path != "" {
			var err error
			data, err = os.ReadFile(f.Path)
			if err != nil {
				return nil, "", fmt.Errorf("read %s: %w", f.Path, err)
			}
			if name == "" {
				name = filepath.Base(f.Path)
			}
		}
		if name == "" {
			name = f.Field
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(name)))
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
