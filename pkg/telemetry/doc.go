// Package telemetry provides observability instrumentation for iotwb.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and an in-process event publisher. The Observer type
// plugs all four into a project as an engine.Observer, and GateRecorder
// counts policy denials.
//
// # Usage
//
//	cfg := telemetry.FromSettings(settings, version)
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	p := engine.NewProject(engine.ProjectConfig{
//	    Observer: telemetry.NewObserver(tel),
//	    Gate:     telemetry.NewGateRecorder(policyEngine, tel),
//	    ...
//	})
//
// # Tracing
//
// Tracing is off unless settings select the stdout or otlp exporter. Each
// phase gets a span named phase.<name> and each component operation a child
// span named component.<operation>.
//
// # Metrics
//
// The CLI exits after one command, so metrics are written with
// prometheus.WriteToTextfile on Shutdown when a metrics file is configured,
// for pickup by the node exporter textfile collector:
//
//   - iotwb_phase_total{phase,result}
//   - iotwb_phase_duration_seconds{phase}
//   - iotwb_component_operations_total{operation,component,result}
//   - iotwb_policy_denials_total{phase,component}
//   - iotwb_errors_total{class}
//
// # Events
//
// Events are delivered synchronously unless EnableAsync is set. Phase
// finished events carry the operation outcome telemetry projection in Data.
package telemetry
