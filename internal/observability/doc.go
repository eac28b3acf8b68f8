// Package observability provides structured logging and metrics for the notes API.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - OpenTelemetry counters for authorization decisions
//   - A Prometheus scrape handler backed by the OpenTelemetry exporter
package observability
