package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/protocol"
)

// Sink receives fired alerts. Sink failures are logged, never propagated
// into the pipeline.
type Sink interface {
	Deliver(ctx context.Context, alert protocol.Alert) error
	Name() string
}

// Emitter fans each alert out to every configured sink.
type Emitter struct {
	sinks []Sink
	log   *slog.Logger
}

func NewEmitter(cfg config.AlertsConfig, log *slog.Logger) (*Emitter, error) {
	log = log.With(slog.String("component", "alerts"))
	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "log":
			sinks = append(sinks, NewLogSink(log))
		case "exec":
			sink, err := NewExecSink(sc.Command)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc))
		default:
			return nil, fmt.Errorf("unknown alert sink type %q", sc.Type)
		}
	}
	return &Emitter{sinks: sinks, log: log}, nil
}

// NewEmitterWithSinks wires explicit sinks, used by tests.
func NewEmitterWithSinks(log *slog.Logger, sinks ...Sink) *Emitter {
	return &Emitter{sinks: sinks, log: log}
}

func (e *Emitter) Emit(ctx context.Context, alert protocol.Alert) {
	for _, sink := range e.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			e.log.Warn("alert sink failed",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()))
		}
	}
}
