package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
)

// Task is the body of a scheduled job. For Every, returning false stops the
// loop early.
type Task func(ctx context.Context) bool

// Handle cancels a scheduled job. Cancel is idempotent and, once it returns,
// the job will not start another run. A run already in progress sees its
// context cancelled.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancel()
}

// Done is closed when the job has finished for good.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Scheduler runs delayed and periodic jobs on goroutines with panic isolation.
type Scheduler struct {
	log  observability.Logger
	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(logger observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		log:  logger.With(observability.F("component", "scheduler")),
		base: base,
		stop: stop,
	}
}

// After runs task once after d.
func (s *Scheduler) After(ctx context.Context, name string, d time.Duration, task func(ctx context.Context)) *Handle {
	return s.spawn(ctx, func(ctx context.Context) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.run(ctx, name, func(ctx context.Context) bool { task(ctx); return false })
	})
}

// Every runs task at each interval, at most maxRuns times (0 means no bound).
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, maxRuns int, task Task) *Handle {
	return s.spawn(ctx, func(ctx context.Context) {
		t := time.NewTicker(interval)
		defer t.Stop()
		for n := 0; maxRuns <= 0 || n < maxRuns; n++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if ctx.Err() != nil {
				return
			}
			if !s.run(ctx, name, task) {
				return
			}
		}
	})
}

func (s *Scheduler) spawn(parent context.Context, body func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stopWithScheduler := context.AfterFunc(s.base, cancel)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(h.done)
		defer stopWithScheduler()
		defer cancel()
		body(ctx)
	}()
	return h
}

func (s *Scheduler) run(ctx context.Context, name string, task Task) (more bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled_task_panic",
				observability.F("task", name),
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
			more = true
		}
	}()
	return task(ctx)
}

// Shutdown cancels every job and waits for running bodies to return.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Group cancels several handles as one unit.
type Group struct {
	mu      sync.Mutex
	handles []*Handle
	closed  bool
}

// Add registers h. Adding to a cancelled group cancels h immediately.
func (g *Group) Add(h *Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		h.Cancel()
		return
	}
	g.handles = append(g.handles, h)
}

func (g *Group) Cancel() {
	g.mu.Lock()
	handles := g.handles
	g.handles = nil
	g.closed = true
	g.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}
