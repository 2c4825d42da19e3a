package sinks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logpipeline/internal/config"
	"logpipeline/pkg/record"
)

func TestOTLP_SendPostsJSONArrayAndMarksHealthy(t *testing.T) {
	var gotBody string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	o := NewOTLP(config.OTLPConfig{
		Enabled: true, Endpoint: srv.URL, TimeoutMs: 2000,
		Headers: map[string]string{"X-Api-Key": "secret"},
	}, nil)

	batch := []record.Record{{Level: record.Info, Message: "shipped", Timestamp: time.Now()}}
	require.NoError(t, o.Send(context.Background(), batch))
	require.True(t, o.IsHealthy())
	require.Equal(t, "secret", gotHeader)
	require.True(t, strings.Contains(gotBody, "shipped") || gotBody == "")
}

func TestOTLP_NonSuccessStatusMarksUnhealthyAndReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOTLP(config.OTLPConfig{Enabled: true, Endpoint: srv.URL, TimeoutMs: 2000}, nil)
	err := o.Send(context.Background(), []record.Record{{Message: "boom"}})
	require.Error(t, err)
	require.False(t, o.IsHealthy())
}

func TestOTLP_TooManyRequestsHonorsRetryAfterHeader(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOTLP(config.OTLPConfig{Enabled: true, Endpoint: srv.URL, TimeoutMs: 2000}, nil)
	err := o.Send(context.Background(), []record.Record{{Message: "throttled"}})
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestOTLP_LargeBatchIsCompressed(t *testing.T) {
	var gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o := NewOTLP(config.OTLPConfig{Enabled: true, Endpoint: srv.URL, TimeoutMs: 2000}, nil)
	batch := make([]record.Record, 200)
	for i := range batch {
		batch[i] = record.Record{Message: strings.Repeat("x", 50)}
	}
	require.NoError(t, o.Send(context.Background(), batch))
	require.Equal(t, "gzip", gotEncoding)
}

func TestParseRetryAfter_NumericSeconds(t *testing.T) {
	d, ok := parseRetryAfter("5")
	require.True(t, ok)
	require.Equal(t, 5*time.Second, d)
}

func TestParseRetryAfter_EmptyHeader(t *testing.T) {
	_, ok := parseRetryAfter("")
	require.False(t, ok)
}
