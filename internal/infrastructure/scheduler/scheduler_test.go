package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestAfterRuns(t *testing.T) {
	s := New(nil)
	var ran atomic.Bool
	h := s.After(context.Background(), "once", 5*time.Millisecond, func(context.Context) { ran.Store(true) })
	waitDone(t, h)
	assert.True(t, ran.Load())
}

func TestAfterCancelled(t *testing.T) {
	s := New(nil)
	var ran atomic.Bool
	h := s.After(context.Background(), "once", 50*time.Millisecond, func(context.Context) { ran.Store(true) })
	h.Cancel()
	waitDone(t, h)
	assert.False(t, ran.Load())
}

func TestEveryBounded(t *testing.T) {
	tests := []struct {
		name    string
		maxRuns int
		stopAt  int32
		want    int32
	}{
		{name: "bounded", maxRuns: 3, stopAt: 100, want: 3},
		{name: "early stop", maxRuns: 10, stopAt: 2, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil)
			var n atomic.Int32
			h := s.Every(context.Background(), "poll", time.Millisecond, tt.maxRuns, func(context.Context) bool {
				return n.Add(1) < tt.stopAt
			})
			waitDone(t, h)
			assert.Equal(t, tt.want, n.Load())
		})
	}
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	s := New(nil)
	var n atomic.Int32
	h := s.Every(context.Background(), "flaky", time.Millisecond, 3, func(context.Context) bool {
		if n.Add(1) == 1 {
			panic("boom")
		}
		return true
	})
	waitDone(t, h)
	assert.Equal(t, int32(3), n.Load())
}

func TestGroupCancel(t *testing.T) {
	s := New(nil)
	var g Group
	var ran atomic.Int32
	a := s.After(context.Background(), "a", time.Hour, func(context.Context) { ran.Add(1) })
	b := s.Every(context.Background(), "b", time.Hour, 0, func(context.Context) bool { ran.Add(1); return true })
	g.Add(a)
	g.Add(b)
	g.Cancel()
	waitDone(t, a)
	waitDone(t, b)
	assert.Zero(t, ran.Load())

	late := s.After(context.Background(), "late", time.Hour, func(context.Context) { ran.Add(1) })
	g.Add(late)
	waitDone(t, late)
}

func TestShutdown(t *testing.T) {
	s := New(nil)
	h := s.Every(context.Background(), "forever", time.Hour, 0, func(context.Context) bool { return true })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	waitDone(t, h)
}
