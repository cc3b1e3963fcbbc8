package chatbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/gorilla/websocket"
)

const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2.0
	JitterPercent  = 0.2

	HeartbeatTimeout = 60 * time.Second
	PongTimeout      = 10 * time.Second
	WriteTimeout     = 10 * time.Second
)

// Handler receives every decoded interaction. It is called from the read
// loop, so it must hand work off quickly.
type Handler func(ctx context.Context, in messaging.Interaction)

type envelope struct {
	Type        string                `json:"type"`
	Interaction messaging.Interaction `json:"interaction"`
}

// Listener streams interactions from the bridge over a websocket and
// reconnects with exponential backoff when the stream drops.
type Listener struct {
	url     string
	token   string
	handler Handler
	log     observability.Logger

	conn    *websocket.Conn
	connMu  sync.Mutex
	backoff time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewListener(wsURL, token string, handler Handler, logger observability.Logger) *Listener {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Listener{
		url:      wsURL,
		token:    token,
		handler:  handler,
		log:      logger.With(observability.F("component", "chatbridge_listener")),
		backoff:  InitialBackoff,
		stopChan: make(chan struct{}),
	}
}

func (l *Listener) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.runLoop(ctx)
}

func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.closeConnection()
	l.wg.Wait()
}

func (l *Listener) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.stopChan:
		return true
	default:
		return false
	}
}

func (l *Listener) runLoop(ctx context.Context) {
	defer l.wg.Done()
	for !l.stopped(ctx) {
		if err := l.connect(ctx); err != nil {
			l.log.Warn("ws_connect_failed", observability.F("error", err.Error()), observability.F("backoff", l.backoff.String()))
			l.waitBackoff(ctx)
			continue
		}
		if err := l.readLoop(ctx); err != nil && !l.stopped(ctx) {
			l.log.Warn("ws_read_error", observability.F("error", err.Error()))
		}
		l.closeConnection()
		if !l.stopped(ctx) {
			l.waitBackoff(ctx)
		}
	}
	l.log.Info("ws_loop_stopped")
}

func (l *Listener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := http.Header{}
	if l.token != "" {
		headers.Set("Authorization", "Bearer "+l.token)
	}
	conn, resp, err := dialer.DialContext(ctx, l.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(HeartbeatTimeout + PongTimeout))
	})

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
	l.backoff = InitialBackoff

	l.wg.Add(1)
	go l.pingLoop(ctx, conn)

	l.log.Info("ws_connected", observability.F("endpoint", l.url))
	return nil
}

func (l *Listener) readLoop(ctx context.Context) error {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("connection is nil")
	}
	for !l.stopped(ctx) {
		_ = conn.SetReadDeadline(time.Now().Add(HeartbeatTimeout + PongTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}
		l.handleMessage(ctx, data)
	}
	return nil
}

func (l *Listener) handleMessage(ctx context.Context, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		l.log.Debug("ws_parse_error", observability.F("error", err.Error()))
		return
	}
	if env.Type != "interaction" || env.Interaction.Action == "" {
		l.log.Debug("ws_message", observability.F("type", env.Type))
		return
	}
	l.handler(ctx, env.Interaction)
}

func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer l.wg.Done()
	ticker := time.NewTicker(HeartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.connMu.Lock()
			current := l.conn
			var err error
			if current == conn {
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout))
			}
			l.connMu.Unlock()
			if current != conn {
				return
			}
			if err != nil {
				l.log.Warn("ws_ping_failed", observability.F("error", err.Error()))
				l.closeConnection()
				return
			}
		}
	}
}

func (l *Listener) closeConnection() {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
		l.log.Info("ws_disconnected")
	}
}

// nextBackoff returns the wait for the current attempt, with jitter, and
// advances the base for the next one.
func (l *Listener) nextBackoff() time.Duration {
	jitter := time.Duration(float64(l.backoff) * JitterPercent * (rand.Float64()*2 - 1))
	wait := l.backoff + jitter
	l.backoff = time.Duration(float64(l.backoff) * BackoffFactor)
	if l.backoff > MaxBackoff {
		l.backoff = MaxBackoff
	}
	return wait
}

func (l *Listener) waitBackoff(ctx context.Context) {
	wait := l.nextBackoff()
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-l.stopChan:
	case <-t.C:
	}
}
