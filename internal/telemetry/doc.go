// Package telemetry wires OpenTelemetry providers for afk.
//
// Export is disabled by default: a CLI run on a laptop has no collector.
// When enabled, traces and metrics flow to an OTLP/gRPC endpoint and the
// providers are installed globally so the session's instruments pick them
// up. Telemetry never fails a run; a broken exporter degrades to no-ops.
package telemetry
