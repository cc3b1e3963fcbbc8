package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
)

var ErrStopped = errors.New("outbox: bus stopped")

const (
	componentOutbox       = "outbox"
	defaultQueueSize      = 1024
	defaultConcurrency    = 8
	defaultHandlerTimeout = 30 * time.Second
)

// Options tunes a Bus. Zero values take the defaults.
type Options struct {
	QueueSize      int
	Concurrency    int
	HandlerTimeout time.Duration
}

// Bus is an in-memory event bus. Events are queued and fanned out to every
// subscriber of their name, each handler on its own goroutine. It is not
// durable: events still queued when the process dies are lost, which is
// acceptable because every event here is an audit or notification side
// effect of state that is already persisted.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	queue       chan domoutbox.Event
	startOnce   sync.Once
	stopOnce    sync.Once
	closeMu     sync.RWMutex
	stopped     bool
	cancel      context.CancelFunc
	loopDone    chan struct{}
	concurrency int
	timeout     time.Duration
	log         observability.Logger
	tel         observability.Observability
}

func NewBus(tel observability.Observability, opts Options) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = defaultHandlerTimeout
	}
	return &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan domoutbox.Event, opts.QueueSize),
		loopDone:    make(chan struct{}),
		concurrency: opts.Concurrency,
		timeout:     opts.HandlerTimeout,
		log:         tel.Logger().With(observability.F("component", componentOutbox)),
		tel:         tel,
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatchLoop(bg)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events, drains what is already queued and waits for the
// dispatcher to finish or ctx to expire.
func (b *Bus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.closeMu.Lock()
		b.stopped = true
		close(b.queue)
		b.closeMu.Unlock()

		started := b.cancel != nil
		if started {
			select {
			case <-b.loopDone:
			case <-ctx.Done():
				err = ctx.Err()
				b.cancel()
			}
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped", observability.F("drained", err == nil))
	})
	return err
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.stopped {
		return ErrStopped
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.Err(ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			hctx = logctx.With(hctx, logger)
			if err := h(hctx, e); err != nil {
				logger.Warn("event_handler_error", observability.Err(err))
			}
		}()
	}

	wg.Wait()
	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
