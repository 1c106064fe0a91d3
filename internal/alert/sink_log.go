package alert

import (
	"context"
	"log/slog"

	"github.com/vigil-labs/vigil-core/internal/protocol"
)

type logSink struct {
	log *slog.Logger
}

// NewLogSink records alerts as structured log entries.
func NewLogSink(log *slog.Logger) Sink {
	return &logSink{log: log}
}

func (s *logSink) Name() string { return "log" }

func (s *logSink) Deliver(_ context.Context, alert protocol.Alert) error {
	s.log.Warn("alert fired",
		slog.String("session", alert.SessionID),
		slog.String("clip", alert.ClipID),
		slog.String("from", alert.FromState),
		slog.String("to", alert.ToState),
		slog.String("tier", alert.Tier))
	return nil
}
