package perr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransport_RetryableStatuses(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		e := ClassifyTransport("otlp", "send", status, errors.New("bad"))
		assert.Equal(t, ClassTransientTransport, e.Class, "status %d should be transient", status)
		assert.True(t, e.Retryable())
	}
}

func TestClassifyTransport_PermanentStatuses(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		e := ClassifyTransport("otlp", "send", status, errors.New("bad"))
		assert.Equal(t, ClassPermanentTransport, e.Class, "status %d should be permanent", status)
		assert.False(t, e.Retryable())
	}
}

func TestError_UnwrapAndStatusCode(t *testing.T) {
	cause := errors.New("dial failed")
	e := Wrap(ClassTransientTransport, "otlp", "send", cause).WithStatus(503)

	assert.Equal(t, cause, errors.Unwrap(e))
	assert.Equal(t, 503, e.StatusCode())
	assert.Contains(t, e.Error(), "dial failed")
}

func TestShutdownAndQueueFullHelpers(t *testing.T) {
	assert.Equal(t, ClassShutdown, Shutdown("console").Class)
	assert.Equal(t, ClassQueueFull, QueueFull("console").Class)
}
