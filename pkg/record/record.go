package record

import (
	"sync"
	"time"
)

// Source identifies the logger instance that produced a record.
type Source struct {
	Module string
	File   string
	Line   int
}

// Record is an immutable log record. Once returned by New it must never be
// mutated in place — derive a new Record instead.
type Record struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Fields    map[string]any
	Context   Context
	Source    Source
}

// New builds a Record from its constituent parts. fields is copied shallowly
// so later mutation of the caller's map cannot affect the returned Record.
func New(level Level, message string, fields map[string]any, ctx Context, source Source, ts time.Time) Record {
	var copied map[string]any
	if len(fields) > 0 {
		copied = make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
	}
	return Record{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		Fields:    copied,
		Context:   ctx,
		Source:    source,
	}
}

// MonotonicClock hands out timestamps that never decrease across successive
// calls from a single logger instance, per the record.timestamp invariant.
// Wall-clock jitter (NTP step-back, VM pause) would otherwise let a later
// record carry an earlier timestamp than one emitted just before it; Now
// clamps that away by remembering the last value it returned.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

// Now returns the current time, clamped to be no earlier than the previous
// value this clock returned.
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}
