package retry

import (
	"errors"
	"net"
	"strings"
)

// Classifier reports whether err is worth retrying.
type Classifier func(err error) bool

// retryableTagged lets callers (e.g. the sink error taxonomy) declare
// retryability directly instead of relying on string/status sniffing.
type retryableTagged interface {
	Retryable() bool
}

// statusCoded lets an HTTP-backed error expose the response status it
// carries without this package importing net/http.
type statusCoded interface {
	StatusCode() int
}

// DefaultClassifier implements the retryable/non-retryable split from
// the retry contract: 408/429/5xx and network-level failures (timeout,
// connection reset, DNS failure) are retryable; other 4xx, validation,
// auth, and circuit-open signals are not.
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	var tagged retryableTagged
	if errors.As(err, &tagged) {
		return tagged.Retryable()
	}

	var withStatus statusCoded
	if errors.As(err, &withStatus) {
		return isRetryableStatus(withStatus.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range []string{
		"timeout", "connection reset", "connection refused",
		"no such host", "dns", "i/o timeout", "broken pipe", "eof",
	} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
