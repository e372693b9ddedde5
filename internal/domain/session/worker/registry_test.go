package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

func newInfoWorker(token string, groupID int64) *Worker {
	return &Worker{
		info: entities.WorkerInfo{AuthToken: token, Phone: "+1", GroupID: groupID, Emoji: "🔥"},
		done: make(chan struct{}),
	}
}

func TestRegistry_PutReturnsPrevious(t *testing.T) {
	r := NewRegistry(metrics.GetDefaultMetrics())

	first := newInfoWorker("AAAA", 1)
	prev, err := r.Put("AAAA", first)
	require.NoError(t, err)
	assert.Nil(t, prev)

	second := newInfoWorker("AAAA", 2)
	prev, err = r.Put("AAAA", second)
	require.NoError(t, err)
	assert.Same(t, first, prev)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("AAAA")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(metrics.GetDefaultMetrics())
	w := newInfoWorker("AAAA", 1)
	r.Put("AAAA", w)

	got, ok := r.Remove("AAAA")
	require.True(t, ok)
	assert.Same(t, w, got)
	assert.False(t, r.Has("AAAA"))

	_, ok = r.Remove("AAAA")
	assert.False(t, ok)
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry(metrics.GetDefaultMetrics())
	r.Put("CCCC", newInfoWorker("CCCC", 3))
	r.Put("AAAA", newInfoWorker("AAAA", 1))
	r.Put("BBBB", newInfoWorker("BBBB", 2))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "AAAA", list[0].AuthToken)
	assert.Equal(t, "BBBB", list[1].AuthToken)
	assert.Equal(t, "CCCC", list[2].AuthToken)
	assert.Equal(t, int64(2), list[1].GroupID)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry(metrics.GetDefaultMetrics())
	r.Put("AAAA", newInfoWorker("AAAA", 1))
	r.Put("BBBB", newInfoWorker("BBBB", 2))

	assert.False(t, r.Closed())

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())
	assert.True(t, r.Closed())

	prev, err := r.Put("CCCC", newInfoWorker("CCCC", 3))
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.Nil(t, prev)
	assert.False(t, r.Has("CCCC"))
}
