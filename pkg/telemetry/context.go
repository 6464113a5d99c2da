package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Telemetry bundles the logger, tracer, metrics and event publisher of one
// CLI run.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return newTelemetry(cfg, logger)
}

func newTelemetry(cfg *Config, logger *Logger) (*Telemetry, error) {
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// LogEvents writes published events at minLevel or above to the debug log.
func (t *Telemetry) LogEvents(minLevel string) {
	logger := t.Logger.NewComponentLogger("events")
	t.Events.Subscribe(func(e Event) {
		l := logger.WithField("type", e.Type).WithField("event_level", e.Level)
		if e.Phase != "" {
			l = l.WithPhase(e.Phase)
		}
		if e.Component != "" {
			l = l.WithField("item", e.Component)
		}
		l.Debug(e.Message)
	}, FilterByLevel(minLevel))
}

// Shutdown stops the event publisher, flushes spans and writes the metrics
// file. All steps run; their errors are joined.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.Events.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
	}
	if err := t.Metrics.WriteFile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
