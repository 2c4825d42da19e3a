// Package sinks implements the four delivery targets a pipeline can
// fan records out to: console, file, OTLP-HTTP, and Redis. Each sink's
// transport must never block its caller longer than its configured
// timeout; batching, retry, and breaker logic live one layer up and
// call Send directly.
package sinks

import (
	"context"

	"logpipeline/pkg/record"
)

// Sink is the contract every delivery target satisfies.
type Sink interface {
	// Send delivers one batch. It returns a classified error (see
	// pkg/perr) on failure; the caller — not the sink — decides whether
	// to retry.
	Send(ctx context.Context, batch []record.Record) error
	// Flush is a best-effort hint; most sinks treat it as a no-op since
	// Send already delivers synchronously.
	Flush(ctx context.Context) error
	// Close releases the sink's resources. Safe to call once.
	Close(ctx context.Context) error
	// IsHealthy reports the sink's last-known transport health.
	IsHealthy() bool
	// Name identifies the sink for logs, metrics, and health surfacing.
	Name() string
}
