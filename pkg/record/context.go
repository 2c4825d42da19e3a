// Package record defines the immutable log record model: the record itself,
// the append-only logger context it carries, and the field-merge rules used
// when a logger derives a child with overrides.
package record

import (
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Context carries correlation identifiers and service identity that every
// record emitted by a logger (and its children) inherits. Context is
// append-only from the caller's point of view: Merge never mutates its
// receiver, it returns a new Context.
type Context struct {
	Service       string
	Environment   string
	Version       string
	RequestID     string
	CorrelationID string
	TraceID       string
	SpanID        string

	// Extra holds arbitrary user-supplied context fields that don't map to
	// one of the well-known slots above.
	Extra map[string]any
}

// Valid reports whether the two mandatory context fields are populated, per
// the invariant that context.service and context.environment are non-empty.
func (c Context) Valid() bool {
	return c.Service != "" && c.Environment != ""
}

// Merge returns a new Context that is the receiver overridden by fields set
// in overrides. Scalar well-known slots are last-writer-wins: an empty
// string in overrides means "not set" and does not clobber the parent's
// value. Extra is merged one level deep: a key present in both is replaced
// wholesale (arrays are replaced, not concatenated; a nested map at that key
// is merged key-by-key, never deeper than one level).
func (c Context) Merge(overrides Context) Context {
	merged := c

	if overrides.Service != "" {
		merged.Service = overrides.Service
	}
	if overrides.Environment != "" {
		merged.Environment = overrides.Environment
	}
	if overrides.Version != "" {
		merged.Version = overrides.Version
	}
	if overrides.RequestID != "" {
		merged.RequestID = overrides.RequestID
	}
	if overrides.CorrelationID != "" {
		merged.CorrelationID = overrides.CorrelationID
	}
	if overrides.TraceID != "" {
		merged.TraceID = overrides.TraceID
	}
	if overrides.SpanID != "" {
		merged.SpanID = overrides.SpanID
	}

	if len(overrides.Extra) > 0 {
		merged.Extra = mergeExtra(c.Extra, overrides.Extra)
	}

	return merged
}

func mergeExtra(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		existing, hasExisting := out[k]
		incoming, incomingIsMap := v.(map[string]any)
		existingMap, existingIsMap := existing.(map[string]any)

		if hasExisting && existingIsMap && incomingIsMap {
			shallow := make(map[string]any, len(existingMap)+len(incoming))
			for ek, ev := range existingMap {
				shallow[ek] = ev
			}
			for ek, ev := range incoming {
				shallow[ek] = ev
			}
			out[k] = shallow
			continue
		}

		// Scalars and slices: last-writer-wins, replace wholesale.
		out[k] = v
	}
	return out
}

// NewRequestID generates a new opaque request identifier for callers that
// don't supply their own.
func NewRequestID() string {
	return uuid.NewString()
}

// NewCorrelationID generates a new opaque correlation identifier.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ValidTraceID reports whether s is a well-formed W3C/OTel trace ID
// (32 lowercase hex characters, not all zero).
func ValidTraceID(s string) bool {
	id, err := oteltrace.TraceIDFromHex(s)
	return err == nil && id.IsValid()
}

// ValidSpanID reports whether s is a well-formed OTel span ID
// (16 lowercase hex characters, not all zero).
func ValidSpanID(s string) bool {
	id, err := oteltrace.SpanIDFromHex(s)
	return err == nil && id.IsValid()
}
