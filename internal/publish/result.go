package publish

import "context"

// Result is the outcome of a single publish attempt.
type Result struct {
	Success    bool
	Platform   string
	ExternalID string
	Error      string
}

// Failed is the negation of Success.
func (r Result) Failed() bool { return !r.Success }

// Succeeded builds a successful result.
func Succeeded(platform, externalID string) Result {
	return Result{Success: true, Platform: platform, ExternalID: externalID}
}

// FailedWith builds a failed result carrying err's message.
func FailedWith(platform string, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{Platform: platform, Error: msg}
}

// Event is a notification emitted after every publish attempt.
type Event interface {
	EventName() string
	PublishResult() Result
}

// PostPublished is emitted when a post was accepted by the platform.
type PostPublished struct {
	Result Result
}

func (e PostPublished) EventName() string     { return "post.published" }
func (e PostPublished) PublishResult() Result { return e.Result }

// PostFailed is emitted when a publish attempt failed for any reason.
type PostFailed struct {
	Result Result
}

func (e PostFailed) EventName() string     { return "post.failed" }
func (e PostFailed) PublishResult() Result { return e.Result }

// EventFor returns the event matching res.
func EventFor(res Result) Event {
	if res.Success {
		return PostPublished{Result: res}
	}
	return PostFailed{Result: res}
}

// EventSink receives publish events. Implementations must be safe for
// concurrent use.
type EventSink interface {
	Dispatch(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event Event) error

// Dispatch calls f.
func (f EventSinkFunc) Dispatch(ctx context.Context, event Event) error { return f(ctx, event) }

type nopSink struct{}

func (nopSink) Dispatch(context.Context, Event) error { return nil }
