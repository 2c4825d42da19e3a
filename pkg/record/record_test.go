package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextMerge_ScalarLastWriterWins(t *testing.T) {
	base := Context{Service: "svc", Environment: "prod", RequestID: "r1"}
	merged := base.Merge(Context{RequestID: "r2"})

	assert.Equal(t, "svc", merged.Service)
	assert.Equal(t, "prod", merged.Environment)
	assert.Equal(t, "r2", merged.RequestID)
	assert.Equal(t, "r1", base.RequestID, "parent must not be mutated")
}

func TestContextMerge_ExtraShallowMerge(t *testing.T) {
	base := Context{
		Service:     "svc",
		Environment: "prod",
		Extra: map[string]any{
			"user": map[string]any{"id": "1", "plan": "free"},
			"tags": []string{"a", "b"},
		},
	}

	merged := base.Merge(Context{
		Extra: map[string]any{
			"user": map[string]any{"plan": "paid"},
			"tags": []string{"c"},
		},
	})

	userField := merged.Extra["user"].(map[string]any)
	assert.Equal(t, "1", userField["id"], "shallow merge keeps sibling keys")
	assert.Equal(t, "paid", userField["plan"], "shallow merge overrides matching key")

	assert.Equal(t, []string{"c"}, merged.Extra["tags"], "arrays are replaced, not concatenated")

	// Parent untouched.
	assert.Equal(t, []string{"a", "b"}, base.Extra["tags"])
}

func TestContextValid(t *testing.T) {
	assert.False(t, Context{}.Valid())
	assert.False(t, Context{Service: "svc"}.Valid())
	assert.True(t, Context{Service: "svc", Environment: "prod"}.Valid())
}

func TestNewCopiesFields(t *testing.T) {
	fields := map[string]any{"a": 1}
	r := New(Info, "hello", fields, Context{Service: "s", Environment: "e"}, Source{Module: "m"}, time.Now())

	fields["a"] = 2
	assert.Equal(t, 1, r.Fields["a"], "record must not observe later mutation of caller's map")
}

func TestMonotonicClockNeverDecreases(t *testing.T) {
	c := &MonotonicClock{}
	first := c.Now()
	c.last = first.Add(time.Hour) // simulate a later value already observed
	second := c.Now()

	require.False(t, second.Before(first))
	assert.True(t, second.Equal(first.Add(time.Hour)) || second.After(first))
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, Debug < Info)
	assert.True(t, Info < Warn)
	assert.True(t, Warn < Error)
	assert.True(t, Error < Fatal)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Warn, ParseLevel("WARNING"))
	assert.Equal(t, Info, ParseLevel("bogus"))
}
