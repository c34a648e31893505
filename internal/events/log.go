package events

import (
	"context"

	"github.com/blacktop/sendto/internal/publish"
	"github.com/charmbracelet/log"
)

// LogSink writes every event to a structured logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Dispatch implements publish.EventSink.
func (s *LogSink) Dispatch(_ context.Context, event publish.Event) error {
	res := event.PublishResult()
	if res.Success {
		s.logger.Debug("event", "name", event.EventName(), "platform", res.Platform, "external_id", res.ExternalID)
	} else {
		s.logger.Debug("event", "name", event.EventName(), "platform", res.Platform, "error", res.Error)
	}
	return nil
}
