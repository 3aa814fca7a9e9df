package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(ctx context.Context, evt Event) error {
	e := s.logger.Info().
		Time("timestamp", evt.Timestamp).
		Str("action", evt.Action).
		Str("account_id", evt.AccountID.String())
	if evt.ActorID != "" {
		e = e.Str("actor_id", evt.ActorID)
	}
	if evt.Detail != "" {
		e = e.Str("detail", evt.Detail)
	}
	e.Msg("audit")
	return nil
}
