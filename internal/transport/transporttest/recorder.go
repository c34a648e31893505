// Package transporttest provides a scripted transport.Doer for adapter tests.
package transporttest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/blacktop/sendto/internal/transport"
)

// Reply is one scripted outcome.
type Reply struct {
	Response *transport.Response
	Err      error
}

// Recorder records every request and answers with scripted replies in
// order. When the script runs out the last reply is repeated.
type Recorder struct {
	mu       sync.Mutex
	replies  []Reply
	requests []*transport.Request
}

// New returns a recorder answering with replies.
func New(replies ...Reply) *Recorder {
	return &Recorder{replies: replies}
}

// Do implements transport.Doer.
func (r *Recorder) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, req)
	if len(r.replies) == 0 {
		return &transport.Response{Status: http.StatusOK, Body: []byte("{}")}, nil
	}
	idx := len(r.requests) - 1
	if idx >= len(r.replies) {
		idx = len(r.replies) - 1
	}
	reply := r.replies[idx]
	return reply.Response, reply.Err
}

// Requests returns the recorded requests.
func (r *Recorder) Requests() []*transport.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*transport.Request(nil), r.requests...)
}

// Count returns the number of requests sent.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// Last returns the most recent request or nil.
func (r *Recorder) Last() *transport.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	return r.requests[len(r.requests)-1]
}

// JSON builds a reply with the given status and v encoded as the body.
func JSON(status int, v any) Reply {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Reply{Response: &transport.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}}
}

// Fail builds a reply that fails at the transport level.
func Fail(err error) Reply {
	return Reply{Err: err}
}
