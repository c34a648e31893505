package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/transport"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Operation performs one network interaction against a resolved platform.
type Operation func(ctx context.Context, platform Platform) (*transport.Response, error)

// Publisher resolves a platform, runs the publish call and normalizes the
// outcome. It keeps no per-call state and is safe for concurrent use.
type Publisher struct {
	registry    *Registry
	sink        EventSink
	concurrency int
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithEventSink sets where PostPublished / PostFailed events go.
func WithEventSink(sink EventSink) PublisherOption {
	return func(p *Publisher) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// WithConcurrency bounds how many platforms ToAll publishes to at once.
// One means strictly sequential, in registration order.
func WithConcurrency(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPublisher returns a publisher over registry.
func NewPublisher(registry *Registry, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		registry:    registry,
		sink:        nopSink{},
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the registry the publisher reads from.
func (p *Publisher) Registry() *Registry { return p.registry }

// Publish sends post to the named platform. It never returns an error:
// every failure, including an unknown platform, is a failed Result.
func (p *Publisher) Publish(ctx context.Context, post content.Post, name string, opts Options) Result {
	return p.Run(ctx, name, func(ctx context.Context, platform Platform) (*transport.Response, error) {
		return platform.Publish(ctx, post, opts)
	})
}

// Run resolves name, executes op and turns its outcome into a Result using
// the platform's own response rules. The matching event is dispatched before
// returning.
func (p *Publisher) Run(ctx context.Context, name string, op Operation) Result {
	res := p.run(ctx, name, op)

	log := logutil.With("platform", name)
	if res.Success {
		log.Info("published", "external_id", res.ExternalID)
	} else {
		log.Warn("publish failed", "error", res.Error)
	}

	if err := p.dispatch(ctx, EventFor(res)); err != nil {
		log.Error("event dispatch failed", "err", err)
	}
	return res
}

func (p *Publisher) dispatch(ctx context.Context, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event sink panic: %v", r)
		}
	}()
	return p.sink.Dispatch(ctx, event)
}

func (p *Publisher) run(ctx context.Context, name string, op Operation) (res Result) {
	platform, err := p.registry.Get(name)
	if err != nil {
		return FailedWith(name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			res = FailedWith(name, fmt.Errorf("%s: panic: %v", name, r))
		}
	}()

	resp, err := op(ctx, platform)
	if err != nil {
		return FailedWith(name, err)
	}

	id, err := platform.ParseResponse(resp)
	if err != nil {
		return FailedWith(name, err)
	}
	return Succeeded(name, id)
}

// ToAll publishes post to every registered platform and returns exactly one
// Result per platform name. Failures are isolated per platform.
func (p *Publisher) ToAll(ctx context.Context, post content.Post, opts Options) map[string]Result {
	return p.ToMany(ctx, post, p.registry.Names(), opts)
}

// ToMany publishes post to the named platforms with the same bounded fan-out
// as ToAll. Names that are not registered get a failed Result.
func (p *Publisher) ToMany(ctx context.Context, post content.Post, names []string, opts Options) map[string]Result {
	results := make(map[string]Result, len(names))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.concurrency)
	for _, name := range names {
		g.Go(func() error {
			res := p.Publish(ctx, post, name, opts)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
