package rss

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/models"
)

type fakeSources struct {
	sources map[string]models.RssSource
}

func (f *fakeSources) ByID(_ context.Context, id string) (models.RssSource, error) {
	s, ok := f.sources[id]
	if !ok {
		return models.RssSource{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeSources) ListActive(_ context.Context) ([]models.RssSource, error) {
	var active []models.RssSource
	for _, s := range f.sources {
		if !s.IsStopped {
			active = append(active, s)
		}
	}
	return active, nil
}

func TestSchedulerTicks(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(func(_ context.Context, _ string) { ticks.Add(1) })
	defer s.Shutdown()

	s.Register("src1", 10*time.Millisecond)
	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerNonPositiveIntervalDefaults(t *testing.T) {
	s := NewScheduler(func(_ context.Context, _ string) {})
	defer s.Shutdown()

	s.Register("src1", 0)
	assert.True(t, s.Active("src1"))
}

func TestSchedulerRegisterIdempotent(t *testing.T) {
	s := NewScheduler(func(_ context.Context, _ string) {})
	defer s.Shutdown()

	s.Register("src1", time.Hour)
	s.Register("src1", time.Hour)
	assert.Equal(t, 1, s.Count())
	assert.True(t, s.Active("src1"))
}

func TestSchedulerDeregisterStopsTicks(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(func(_ context.Context, _ string) { ticks.Add(1) })
	defer s.Shutdown()

	s.Register("src1", 10*time.Millisecond)
	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.Deregister("src1")
	assert.False(t, s.Active("src1"))

	// no tick fires after Deregister returns
	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load())
}

func TestSchedulerDeregisterUnknownIsNoop(t *testing.T) {
	s := NewScheduler(func(_ context.Context, _ string) {})
	s.Deregister("ghost")
	assert.Equal(t, 0, s.Count())
}

func TestSchedulerStopStartYieldsOneTask(t *testing.T) {
	s := NewScheduler(func(_ context.Context, _ string) {})
	defer s.Shutdown()

	s.Register("src1", time.Hour)
	s.Deregister("src1")
	s.Register("src1", time.Hour)
	assert.Equal(t, 1, s.Count())
}

func TestSchedulerRehydrate(t *testing.T) {
	s := NewScheduler(func(_ context.Context, _ string) {})
	defer s.Shutdown()

	sources := &fakeSources{sources: map[string]models.RssSource{
		"a": {ID: "a", Interval: 60},
		"b": {ID: "b", Interval: 60, IsStopped: true},
		"c": {ID: "c", Interval: 60},
	}}
	require.NoError(t, s.Rehydrate(context.Background(), sources))

	assert.Equal(t, 2, s.Count())
	assert.True(t, s.Active("a"))
	assert.False(t, s.Active("b"))
	assert.True(t, s.Active("c"))
}

func TestSchedulerShutdown(t *testing.T) {
	s := NewScheduler(func(_ context.Context, _ string) {})
	s.Register("a", time.Hour)
	s.Register("b", time.Hour)

	s.Shutdown()
	assert.Equal(t, 0, s.Count())
}
