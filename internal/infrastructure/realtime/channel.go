package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/pkg/metrics"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Connection states.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	defaultMessageLogSize = 1000
	handshakeTimeout      = 10 * time.Second
	closeWriteTimeout     = time.Second
)

// Options configures a Channel.
type Options struct {
	// URL is the websocket endpoint, user_id is appended as a query parameter.
	URL            string
	ReconnectDelay time.Duration
	MessageLogSize int
	Header         http.Header
}

// Channel keeps one websocket to the messaging service and reconnects after
// any close that is not a normal (1000) closure.
type Channel struct {
	opts   Options
	logger port.Logger
	dialer *websocket.Dialer
	broker *Broker

	mu             sync.Mutex
	state          string
	conn           *websocket.Conn
	userID         string
	intentional    bool
	epoch          uint64 // bumped by Disconnect, stale dials compare against it
	reconnectTimer *time.Timer
	messages       []entity.ReceivedEnvelope

	writeMu sync.Mutex
}

// NewChannel creates a disconnected channel.
func NewChannel(opts Options, l port.Logger) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MessageLogSize <= 0 {
		opts.MessageLogSize = defaultMessageLogSize
	}
	return &Channel{
		opts:   opts,
		logger: l,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		broker: NewBroker(l),
		state:  StateDisconnected,
	}
}

// Connect opens the channel for userID. Если канал уже подключен или подключается,
// вызов ничего не делает, второй сокет не открывается.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	if c.opts.URL == "" {
		return errors.New("realtime: url is not configured")
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		c.logger.Debug("Realtime channel already active, skipping connect", "state", c.State())
		return nil
	}
	c.state = StateConnecting
	c.userID = userID
	c.intentional = false
	c.stopReconnectLocked()
	epoch := c.epoch
	c.mu.Unlock()

	return c.dial(ctx, userID, epoch)
}

func (c *Channel) dial(ctx context.Context, userID string, epoch uint64) error {
	target, err := buildURL(c.opts.URL, userID)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, c.opts.Header)

	c.mu.Lock()
	if epoch != c.epoch {
		// Disconnect был вызван, пока шло подключение.
		c.mu.Unlock()
		if conn != nil {
			closeConn(conn, websocket.CloseNormalClosure)
		}
		return nil
	}
	if err != nil {
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.logger.Warn("Realtime channel dial failed", "error", err)
		return fmt.Errorf("realtime: dial %s: %w", c.opts.URL, err)
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("Realtime channel connected", "user_id", userID)
	go c.readLoop(conn)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.handleFrame(data)
	}
}

func (c *Channel) handleFrame(data []byte) {
	var env entity.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("Dropping unparseable realtime frame", "error", err, "size", len(data))
		return
	}

	c.mu.Lock()
	if len(c.messages) >= c.opts.MessageLogSize {
		c.messages = append(c.messages[:0:0], c.messages[len(c.messages)-c.opts.MessageLogSize+1:]...)
	}
	c.messages = append(c.messages, entity.ReceivedEnvelope{Envelope: env, ReceivedAt: time.Now()})
	c.mu.Unlock()

	metrics.RealtimeMessages.WithLabelValues(env.Type).Inc()
	delivered := c.broker.Publish(env)
	c.logger.Debug("Realtime message dispatched", "type", env.Type, "subscribers", delivered)
}

func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	reconnect := !c.intentional && code != websocket.CloseNormalClosure
	if reconnect {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	conn.Close()
	if reconnect {
		c.logger.Warn("Realtime channel closed unexpectedly, reconnect scheduled",
			"code", code, "error", err, "delay", c.opts.ReconnectDelay.String())
	} else {
		c.logger.Info("Realtime channel closed", "code", code)
	}
}

// scheduleReconnectLocked arms a single reconnect timer. Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.intentional || c.reconnectTimer != nil {
		return
	}
	metrics.RealtimeReconnects.Inc()
	userID := c.userID
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.intentional || c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		epoch := c.epoch
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		defer cancel()
		if err := c.dial(ctx, userID, epoch); err != nil {
			c.logger.Debug("Realtime reconnect attempt failed", "error", err)
		}
	})
}

func (c *Channel) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// Disconnect closes the channel intentionally (code 1000) and cancels pending reconnects.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.epoch++
	c.stopReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		closeConn(conn, websocket.CloseNormalClosure)
		c.logger.Info("Realtime channel disconnected")
	}
}

// Send writes env when the channel is open. Otherwise the message is dropped:
// there is no outbound queue.
func (c *Channel) Send(env entity.Envelope) bool {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		metrics.RealtimeDroppedSends.Inc()
		c.logger.Warn("Realtime channel is not open, message dropped", "type", env.Type, "state", state)
		return false
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("Failed to encode realtime message", "type", env.Type, "error", err)
		return false
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		metrics.RealtimeDroppedSends.Inc()
		c.logger.Warn("Failed to write realtime message", "type", env.Type, "error", err)
		return false
	}
	return true
}

// Subscribe registers h for one message type.
func (c *Channel) Subscribe(msgType string, h Handler) *Subscription {
	return c.broker.Subscribe(msgType, h)
}

// SubscribeAll registers h for every message type.
func (c *Channel) SubscribeAll(h Handler) *Subscription {
	return c.broker.Subscribe(AllTypes, h)
}

// Unsubscribe removes a subscription returned by Subscribe or SubscribeAll.
func (c *Channel) Unsubscribe(sub *Subscription) bool {
	return c.broker.Unsubscribe(sub)
}

// State returns the current connection state.
func (c *Channel) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the inbound message log, oldest first.
func (c *Channel) Messages() []entity.ReceivedEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.ReceivedEnvelope, len(c.messages))
	copy(out, c.messages)
	return out
}

func buildURL(base, userID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("realtime: invalid url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func closeConn(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	conn.Close()
}
