package remote

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/adamavenir/pairchat/internal/types"
)

const (
	streamReadLimit   = 1 << 20
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// Connect starts the push stream. Events flow until Close is called or ctx ends.
// After every successful re-dial following a drop, a connection.restored event is emitted.
func (c *HTTPClient) Connect(ctx context.Context) {
	if !c.streaming.CompareAndSwap(false, true) {
		return
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	go c.runStream(streamCtx)
}

// Close stops the push stream and closes the events channel.
func (c *HTTPClient) Close() {
	c.stopOnce.Do(func() {
		if !c.streaming.Load() {
			close(c.events)
			return
		}
		c.stop()
		<-c.done
	})
}

func (c *HTTPClient) runStream(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	delay := minReconnectDelay
	everConnected := false
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("event stream dial failed", "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		delay = minReconnectDelay
		c.connected.Store(true)
		if everConnected {
			c.emit(ctx, types.Event{Kind: types.EventConnectionRestored, TS: c.now().UnixMilli()})
		}
		everConnected = true
		c.logger.Info("event stream connected")

		err = c.readEvents(ctx, conn)
		c.connected.Store(false)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event stream dropped", "error", err)
		c.emit(ctx, types.Event{Kind: types.EventConnectionLost, TS: c.now().UnixMilli()})
	}
}

func (c *HTTPClient) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.buildURL("/v1/events", nil)
	if err != nil {
		return nil, err
	}
	endpoint = websocketURL(endpoint)

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(streamReadLimit)
	return conn, nil
}

func (c *HTTPClient) readEvents(ctx context.Context, conn *websocket.Conn) error {
	for {
		var event types.Event
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			return err
		}
		if event.Kind == "" {
			continue
		}
		if !c.emit(ctx, event) {
			return ctx.Err()
		}
	}
}

func (c *HTTPClient) emit(ctx context.Context, event types.Event) bool {
	select {
	case c.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func websocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

func nextDelay(delay time.Duration) time.Duration {
	delay *= 2
	if delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
