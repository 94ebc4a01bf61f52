package events

import (
	"github.com/tphakala/voicekit/internal/logger"
)

// LogConsumer writes every lifecycle event to a logger.
type LogConsumer struct {
	log logger.Logger
}

// NewLogConsumer returns a consumer logging at debug level, or at warn level
// for denials and failures.
func NewLogConsumer(log logger.Logger) *LogConsumer {
	return &LogConsumer{log: log}
}

func (c *LogConsumer) Name() string { return "log" }

func (c *LogConsumer) ProcessEvent(event LifecycleEvent) error {
	fields := []logger.Field{
		logger.String("event", string(event.Type)),
		logger.String("component", event.Component),
	}
	if event.HandleID != "" {
		fields = append(fields, logger.String("handle_id", event.HandleID))
	}
	if event.SessionID != "" {
		fields = append(fields, logger.String("session_id", event.SessionID))
	}
	if event.Classification != "" {
		fields = append(fields,
			logger.String("classification", event.Classification),
			logger.Bool("retryable", event.Retryable))
	}
	if event.Message != "" {
		fields = append(fields, logger.String("message", event.Message))
	}

	switch event.Type {
	case CaptureDenied, SynthesisFailed:
		c.log.Warn("lifecycle event", fields...)
	default:
		c.log.Debug("lifecycle event", fields...)
	}
	return nil
}
