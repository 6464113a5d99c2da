package telemetry

import (
	"context"
	"errors"

	"github.com/iotworkbench/iotwb/pkg/engine"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type phaseSpanKey struct{}

type phaseTimerKey struct{}

// Observer feeds project phase and component events into tracing, metrics
// and the event publisher. It implements engine.Observer.
type Observer struct {
	tel    *Telemetry
	logger *Logger
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver creates an observer for tel.
func NewObserver(tel *Telemetry) *Observer {
	return &Observer{tel: tel, logger: tel.Logger.NewComponentLogger("project")}
}

// PhaseStarted opens the phase span and starts the phase timer.
func (o *Observer) PhaseStarted(ctx context.Context, phase engine.Phase, project string) context.Context {
	ctx, span := o.tel.Tracer.StartPhaseSpan(ctx, string(phase), project)
	ctx = context.WithValue(ctx, phaseSpanKey{}, span)
	ctx = context.WithValue(ctx, phaseTimerKey{}, NewTimer())
	o.logger.WithProject(project).WithPhase(string(phase)).Debug("Phase started")

	if err := o.tel.Events.PublishPhaseStarted(string(phase), project); err != nil {
		o.tel.Logger.WithError(err).Debug("Failed to publish phase event")
	}
	return ctx
}

// PhaseFinished closes the phase span and records the phase result.
func (o *Observer) PhaseFinished(ctx context.Context, phase engine.Phase, outcome *engine.OperationOutcome) {
	result := string(outcome.Result())

	timer, ok := ctx.Value(phaseTimerKey{}).(*Timer)
	if !ok {
		timer = NewTimer()
	}
	duration := timer.Duration()
	o.tel.Metrics.RecordPhase(string(phase), result, duration)
	o.logger.WithPhase(string(phase)).WithField("result", result).WithField("duration", duration.String()).Debug("Phase finished")

	if span, ok := ctx.Value(phaseSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrOutcome.String(result))
		if outcome.Result() == engine.OutcomeFailed {
			span.SetStatus(codes.Error, outcome.Details())
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	if err := o.tel.Events.PublishPhaseFinished(string(phase), result, duration, outcome.Telemetry()); err != nil {
		o.tel.Logger.WithError(err).Debug("Failed to publish phase event")
	}
}

// ComponentOperation records one component operation.
func (o *Observer) ComponentOperation(ctx context.Context, operation string, component engine.Component, ok bool, err error) {
	result := string(engine.OutcomeSucceeded)
	switch {
	case err != nil && engine.IsCancelled(err):
		result = string(engine.OutcomeCanceled)
	case err != nil || !ok:
		result = string(engine.OutcomeFailed)
	}

	o.tel.Tracer.RecordComponentOperation(ctx, operation, component.Name(), string(component.ComponentType()), ok, err)
	o.tel.Metrics.RecordComponentOperation(operation, component.Name(), result)

	var ee *engine.EngineError
	if errors.As(err, &ee) {
		o.tel.Metrics.RecordError(string(ee.Class))
	}

	if perr := o.tel.Events.PublishComponentOperation(operation, component.Name(), result, err); perr != nil {
		o.tel.Logger.WithError(perr).Debug("Failed to publish component event")
	}
}

// GateRecorder wraps a gate and records its denials.
type GateRecorder struct {
	gate engine.Gate
	tel  *Telemetry
}

var _ engine.Gate = (*GateRecorder)(nil)

// NewGateRecorder wraps gate.
func NewGateRecorder(gate engine.Gate, tel *Telemetry) *GateRecorder {
	return &GateRecorder{gate: gate, tel: tel}
}

// Evaluate implements engine.Gate.
func (g *GateRecorder) Evaluate(ctx context.Context, req engine.GateRequest) (*engine.GateDecision, error) {
	decision, err := g.gate.Evaluate(ctx, req)
	if err != nil || decision.Allowed {
		return decision, err
	}

	g.tel.Metrics.RecordPolicyDenial(string(req.Phase), req.Component)
	if perr := g.tel.Events.PublishPolicyDenied(string(req.Phase), req.Component, decision.Reasons); perr != nil {
		g.tel.Logger.WithError(perr).Debug("Failed to publish policy event")
	}
	return decision, nil
}
