package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"logpipeline/internal/config"
	"logpipeline/pkg/perr"
	"logpipeline/pkg/record"
	"logpipeline/pkg/serializer"
)

const gzipMinBytes = 1024

// OTLP batches serialized records into a JSON array and POSTs it to the
// configured endpoint. The body shape is the array of records directly
// (not the OTLP-protobuf logs envelope) — see the OTLP wire Open
// Question resolution.
type OTLP struct {
	cfg    config.OTLPConfig
	ser    *serializer.Serializer
	client *http.Client
	logger *logrus.Logger
	level  record.Level

	healthy atomic.Bool
}

// NewOTLP builds an OTLP sink. cfg.Endpoint is assumed already validated
// as a well-formed URL by the config loader.
func NewOTLP(cfg config.OTLPConfig, logger *logrus.Logger) *OTLP {
	o := &OTLP{
		cfg:    cfg,
		ser:    serializer.New(serializer.Config{Format: serializer.FormatJSON}),
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		logger: logger,
		level:  sinkLevel(cfg.Level),
	}
	o.healthy.Store(true)
	return o
}

func (o *OTLP) Name() string { return "otlp" }

func (o *OTLP) Send(ctx context.Context, batch []record.Record) error {
	batch = filterByLevel(batch, o.level)
	if len(batch) == 0 {
		return nil
	}

	payload, err := o.buildPayload(batch)
	if err != nil {
		return perr.Wrap(perr.ClassSerialization, "otlp", "encode", err)
	}

	body, encoding := o.maybeCompress(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return perr.Wrap(perr.ClassPermanentTransport, "otlp", "build-request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	for k, v := range o.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.healthy.Store(false)
		return perr.Wrap(perr.ClassTransientTransport, "otlp", "post", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		o.healthy.Store(true)
		return nil
	}

	o.healthy.Store(false)
	if resp.StatusCode == http.StatusTooManyRequests {
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			o.waitRetryAfter(ctx, wait)
		}
	}
	return perr.ClassifyTransport("otlp", "post", resp.StatusCode, httpStatusError(resp.StatusCode))
}

// buildPayload serializes each record and assembles a JSON array body —
// records are already individually masked/truncated by the serializer,
// so this only needs to concatenate them as array elements.
func (o *OTLP) buildPayload(batch []record.Record) ([]byte, error) {
	raw := make([]json.RawMessage, len(batch))
	for i, rec := range batch {
		raw[i] = json.RawMessage(o.ser.Serialize(rec))
	}
	return json.Marshal(raw)
}

func (o *OTLP) maybeCompress(payload []byte) ([]byte, string) {
	if len(payload) <= gzipMinBytes {
		return payload, ""
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		return payload, ""
	}
	if err := gw.Close(); err != nil {
		return payload, ""
	}
	return buf.Bytes(), "gzip"
}

// waitRetryAfter blocks for wait, bounded by ctx, honoring the server's
// requested delay before the caller's retry manager attempts again.
func (o *OTLP) waitRetryAfter(ctx context.Context, wait time.Duration) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func parseRetryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}

type httpStatusErr struct{ status int }

func (e httpStatusErr) Error() string {
	return "otlp endpoint returned status " + strconv.Itoa(e.status)
}

func httpStatusError(status int) error { return httpStatusErr{status} }

func (o *OTLP) Flush(ctx context.Context) error { return nil }
func (o *OTLP) Close(ctx context.Context) error { return nil }
func (o *OTLP) IsHealthy() bool                 { return o.healthy.Load() }
