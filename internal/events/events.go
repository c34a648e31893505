// Package events delivers publish outcomes to observers: the log, a Kafka
// topic, or several sinks at once.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/blacktop/sendto/internal/publish"
	"github.com/google/uuid"
)

// Envelope is the serialized form of a publish event.
type Envelope struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	Success    bool      `json:"success"`
	ExternalID string    `json:"external_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEnvelope wraps event with a fresh id and timestamp.
func NewEnvelope(event publish.Event) Envelope {
	res := event.PublishResult()
	return Envelope{
		ID:         uuid.NewString(),
		Name:       event.EventName(),
		Platform:   res.Platform,
		Success:    res.Success,
		ExternalID: res.ExternalID,
		Error:      res.Error,
		OccurredAt: time.Now().UTC(),
	}
}

// Multi fans an event out to every sink. All sinks are called; their errors
// are joined.
type Multi []publish.EventSink

// Dispatch implements publish.EventSink.
func (m Multi) Dispatch(ctx context.Context, event publish.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Dispatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
