package serializer

import (
	"encoding/json"
	"fmt"
	"strings"

	"logpipeline/pkg/record"
)

// ANSI color codes keyed by level, matching the convention of most Go
// terminal loggers (cyan/green/yellow/red/magenta for debug..fatal).
var levelColor = map[record.Level]string{
	record.Debug: "\x1b[36m",
	record.Info:  "\x1b[32m",
	record.Warn:  "\x1b[33m",
	record.Error: "\x1b[31m",
	record.Fatal: "\x1b[35m",
}

const ansiReset = "\x1b[0m"

func (s *Serializer) serializePretty(rec record.Record) []byte {
	ts := rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	level := strings.ToUpper(rec.Level.String())

	var b strings.Builder
	if s.colorize {
		b.WriteString(levelColor[rec.Level])
	}
	fmt.Fprintf(&b, "%s [%-5s]", ts, level)
	if s.colorize {
		b.WriteString(ansiReset)
	}
	b.WriteString(" ")
	b.WriteString(rec.Message)

	fields := s.sanitizeTree(rec.Fields, "", map[uintptr]bool{})
	if len(fields) > 0 {
		if fb, err := json.Marshal(fields); err == nil {
			b.WriteString(" ")
			b.Write(fb)
		}
	}

	if rec.Context.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", rec.Context.RequestID)
	}
	if rec.Context.CorrelationID != "" {
		fmt.Fprintf(&b, " correlation_id=%s", rec.Context.CorrelationID)
	}
	b.WriteString("\n")

	out := []byte(b.String())
	if len(out) > s.maxBytes {
		marker := []byte(fmt.Sprintf("...[Truncated:%d]\n", len(out)))
		cut := s.maxBytes - len(marker)
		if cut < 0 {
			cut = 0
		}
		out = append(out[:cut], marker...)
	}
	return out
}
