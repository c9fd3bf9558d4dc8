package datadog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsextract/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed int
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestNewBackend_UDP(t *testing.T) {
	// UDP clients do not dial a listener, so any address works.
	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "vqa.", GlobalTags: []string{"env:test"}})
	require.NoError(t, err)
	require.NoError(t, b.Flush())
}

func TestBackend_ForwardsWithTags(t *testing.T) {
	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"kind": "seen", "job": "dsextract"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "write"})
	require.NoError(t, b.Flush())

	require.Len(t, fc.calls, 2)
	assert.Equal(t, call{"count", metrics.RecordsTotal, 3, []string{"job:dsextract", "kind:seen"}}, fc.calls[0])
	assert.Equal(t, call{"histogram", metrics.StepDuration, 0.25, []string{"step:write"}}, fc.calls[1])
	assert.Equal(t, 1, fc.closed)
}

func TestBackend_NilClient(t *testing.T) {
	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	assert.NoError(t, b.Flush())
}

func TestLabelsToTags(t *testing.T) {
	assert.Nil(t, labelsToTags(nil))
	assert.Equal(t, []string{"a:1", "b:2"}, labelsToTags(metrics.Labels{"b": "2", "a": "1"}))
}
