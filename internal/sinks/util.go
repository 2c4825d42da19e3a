package sinks

import "logpipeline/pkg/record"

// ensureNewline appends a trailing newline if line doesn't already end
// with one. The pretty format's own output already does; the JSON
// format's doesn't, since it's the caller's job to delimit lines.
func ensureNewline(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		return line
	}
	return append(line, '\n')
}

// sinkLevel parses a per-sink minimum level override. An unset (empty)
// config value means "no extra gating beyond the logger's own minimum",
// not Info — ParseLevel's own empty-string default doesn't apply here.
func sinkLevel(s string) record.Level {
	if s == "" {
		return record.Debug
	}
	return record.ParseLevel(s)
}

// filterByLevel returns the subset of batch at or above minimum,
// preserving order.
func filterByLevel(batch []record.Record, minimum record.Level) []record.Record {
	if minimum <= record.Debug {
		return batch
	}
	kept := make([]record.Record, 0, len(batch))
	for _, rec := range batch {
		if rec.Level >= minimum {
			kept = append(kept, rec)
		}
	}
	return kept
}
