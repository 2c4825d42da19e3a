// Package serializer converts log records to wire bytes: JSON for sinks
// that transport machine-readable payloads, or a colorized one-line text
// form for interactive terminals. Serialization never fails — any internal
// error degrades to a minimal envelope carrying a "[SerializeError:...]"
// field rather than propagating to the caller.
package serializer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"logpipeline/pkg/record"
)

// Format selects the wire shape produced by Serialize.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

const (
	// DefaultMaxBytes is the default serialized size ceiling (64 KiB).
	DefaultMaxBytes = 64 * 1024
	redactedValue   = "***REDACTED***"
	circularValue   = "[Circular]"
)

// DefaultSensitivePatterns are matched case-insensitively as substrings of
// a field's dotted key path.
var DefaultSensitivePatterns = []string{
	"password", "token", "secret", "apikey", "api_key", "authorization",
	"cookie", "ssn", "creditcard", "credit_card", "cvv",
}

// Config parameterizes a Serializer.
type Config struct {
	Format             Format
	Colorize           bool
	MaxBytes           int
	SensitivePatterns  []string
}

// Serializer turns records into bytes. It is safe for concurrent use.
type Serializer struct {
	format   Format
	colorize bool
	maxBytes int
	patterns []string
}

// New builds a Serializer, filling in defaults for zero-valued config fields.
func New(cfg Config) *Serializer {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	format := cfg.Format
	if format == "" {
		format = FormatJSON
	}
	patterns := cfg.SensitivePatterns
	if len(patterns) == 0 {
		patterns = DefaultSensitivePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}

	return &Serializer{format: format, colorize: cfg.Colorize, maxBytes: maxBytes, patterns: lowered}
}

// Serialize renders rec in the Serializer's configured format. It never
// returns an error; failures degrade to a minimal envelope.
func (s *Serializer) Serialize(rec record.Record) []byte {
	defer func() {
		// Belt and braces: sanitizeValue and the json encoder are the only
		// things that could conceivably panic (e.g. an exotic reflect kind);
		// recover keeps the "never throws" contract even then.
		_ = recover()
	}()

	switch s.format {
	case FormatPretty:
		return s.serializePretty(rec)
	default:
		return s.serializeJSON(rec)
	}
}

func (s *Serializer) serializeJSON(rec record.Record) []byte {
	envelope, err := s.buildEnvelope(rec)
	if err != nil {
		return s.fallbackEnvelope(rec, err)
	}

	out, err := json.Marshal(envelope)
	if err != nil {
		return s.fallbackEnvelope(rec, err)
	}

	if len(out) > s.maxBytes {
		out = s.truncate(envelope, out)
	}

	return out
}

func (s *Serializer) buildEnvelope(rec record.Record) (env map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			env, err = nil, fmt.Errorf("panic sanitizing record: %v", r)
		}
	}()

	fields := s.sanitizeTree(rec.Fields, "", map[uintptr]bool{})
	ctx := s.sanitizeTree(contextToMap(rec.Context), "", map[uintptr]bool{})

	env = map[string]any{
		"timestamp": rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"level":     rec.Level.String(),
		"message":   rec.Message,
	}
	if fields != nil {
		env["fields"] = fields
	}
	if ctx != nil {
		env["context"] = ctx
	}
	if rec.Source.Module != "" {
		env["source"] = map[string]any{"module": rec.Source.Module, "file": rec.Source.File, "line": rec.Source.Line}
	}
	return env, nil
}

func contextToMap(c record.Context) map[string]any {
	m := map[string]any{}
	if c.Service != "" {
		m["service"] = c.Service
	}
	if c.Environment != "" {
		m["environment"] = c.Environment
	}
	if c.Version != "" {
		m["version"] = c.Version
	}
	if c.RequestID != "" {
		m["requestId"] = c.RequestID
	}
	if c.CorrelationID != "" {
		m["correlationId"] = c.CorrelationID
	}
	if c.TraceID != "" {
		m["traceId"] = c.TraceID
	}
	if c.SpanID != "" {
		m["spanId"] = c.SpanID
	}
	for k, v := range c.Extra {
		m[k] = v
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func (s *Serializer) fallbackEnvelope(rec record.Record, cause error) []byte {
	env := map[string]any{
		"timestamp": rec.Timestamp.UTC().Format(time.RFC3339),
		"level":     rec.Level.String(),
		"message":   rec.Message,
		"error":     fmt.Sprintf("[SerializeError:%s]", cause.Error()),
	}
	out, err := json.Marshal(env)
	if err != nil {
		// Absolute last resort — hand-built, cannot fail.
		return []byte(fmt.Sprintf(`{"timestamp":%q,"level":%q,"message":%q,"error":"[SerializeError:unrenderable]"}`,
			rec.Timestamp.UTC().Format(time.RFC3339), rec.Level.String(), rec.Message))
	}
	return out
}

// sanitizeTree walks m applying masking and cycle detection, returning a
// copy safe to marshal. keyPath is the dotted path to m, used for sensitive
// field matching. visited tracks map/slice pointer identity along the
// current path to detect true cycles (a container reachable from itself).
func (s *Serializer) sanitizeTree(m map[string]any, keyPath string, visited map[uintptr]bool) map[string]any {
	if m == nil {
		return nil
	}
	ptr := mapPointer(m)
	if ptr != 0 {
		if visited[ptr] {
			return nil // caller substitutes circularValue at the field level
		}
		visited = withVisited(visited, ptr)
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		childPath := k
		if keyPath != "" {
			childPath = keyPath + "." + k
		}
		out[k] = s.sanitizeValue(v, childPath, visited)
	}
	return out
}

func (s *Serializer) sanitizeValue(v any, keyPath string, visited map[uintptr]bool) any {
	if s.isSensitive(keyPath) {
		if v == nil {
			return nil
		}
		return redactedValue
	}

	switch tv := v.(type) {
	case map[string]any:
		ptr := mapPointer(tv)
		if ptr != 0 && visited[ptr] {
			return circularValue
		}
		return s.sanitizeTree(tv, keyPath, visited)
	case []any:
		ptr := slicePointer(tv)
		if ptr != 0 && visited[ptr] {
			return circularValue
		}
		nextVisited := visited
		if ptr != 0 {
			nextVisited = withVisited(visited, ptr)
		}
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = s.sanitizeValue(e, keyPath, nextVisited)
		}
		return out
	default:
		return sanitizeReflect(v, visited)
	}
}

// sanitizeReflect handles arbitrary structs/slices/maps of concrete types
// (not map[string]any/[]any) by falling back to reflection so Serialize
// never panics on a caller-supplied field of an unexpected shape.
func sanitizeReflect(v any, visited map[uintptr]bool) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return circularValue
		}
	}
	return v
}

func (s *Serializer) isSensitive(keyPath string) bool {
	if keyPath == "" {
		return false
	}
	lower := strings.ToLower(keyPath)
	for _, p := range s.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func mapPointer(m map[string]any) uintptr {
	if m == nil {
		return 0
	}
	return reflect.ValueOf(m).Pointer()
}

func slicePointer(s []any) uintptr {
	if s == nil {
		return 0
	}
	return reflect.ValueOf(s).Pointer()
}

func withVisited(visited map[uintptr]bool, ptr uintptr) map[uintptr]bool {
	out := make(map[uintptr]bool, len(visited)+1)
	for k := range visited {
		out[k] = true
	}
	out[ptr] = true
	return out
}

// truncate shrinks envelope's largest field until the re-marshaled form
// fits s.maxBytes, never failing. It mutates a copy, not envelope.
func (s *Serializer) truncate(envelope map[string]any, oversized []byte) []byte {
	working := make(map[string]any, len(envelope))
	for k, v := range envelope {
		working[k] = v
	}

	for attempt := 0; attempt < 32; attempt++ {
		out, err := json.Marshal(working)
		if err == nil && len(out) <= s.maxBytes {
			return out
		}

		key, size := largestField(working)
		if key == "" {
			// Nothing left to shrink; return whatever we have, truncated hard.
			if err == nil && len(out) > s.maxBytes {
				return append(out[:s.maxBytes], []byte(`...[Truncated]`)...)
			}
			return out
		}
		working[key] = fmt.Sprintf("[Truncated:%d]", size)
	}

	out, err := json.Marshal(working)
	if err != nil {
		return s.fallbackEnvelope(record.Record{Message: "truncation failed"}, err)
	}
	return out
}

func largestField(m map[string]any) (string, int) {
	type candidate struct {
		key  string
		size int
	}
	var candidates []candidate
	for k, v := range m {
		if k == "timestamp" || k == "level" {
			continue // never truncate the minimum viable envelope
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && strings.HasPrefix(s, "[Truncated:") {
			continue // already truncated, don't re-select it
		}
		candidates = append(candidates, candidate{k, len(b)})
	}
	if len(candidates) == 0 {
		return "", 0
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].size > candidates[j].size })
	return candidates[0].key, candidates[0].size
}
