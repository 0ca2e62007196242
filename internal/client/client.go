package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/crazyeights/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second

	// Time allowed for queued messages to flush on Disconnect
	drainTimeout = 2 * time.Second
)

// ErrNotConnected is returned when sending without a live connection
var ErrNotConnected = errors.New("not connected")

// Client represents a WebSocket connection to the relay. Incoming messages
// are delivered in order on Incoming; the channel is closed when the
// connection drops.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *protocol.Message
	receive   chan *protocol.Message
	logger    *log.Logger
	clock     quartz.Clock
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	closed    bool
	closeOnce sync.Once
	written   chan struct{}
}

// Option configures a Client
type Option func(*Client)

// WithClock sets the clock used for keepalive pings
func WithClock(clock quartz.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		serverURL: serverURL,
		send:      make(chan *protocol.Message, 256),
		receive:   make(chan *protocol.Message, 256),
		logger:    logger.WithPrefix("client"),
		clock:     quartz.NewReal(),
		ctx:       ctx,
		cancel:    cancel,
		written:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WebSocketURL normalises a relay address to its websocket endpoint
func WebSocketURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Connect establishes a WebSocket connection to the relay
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := WebSocketURL(c.serverURL)
	if err != nil {
		return err
	}
	c.logger.Info("Connecting to relay", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected to relay")
	return nil
}

// Disconnect flushes queued messages and closes the connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			select {
			case <-c.written:
			case <-time.After(drainTimeout):
				c.logger.Warn("Timed out flushing messages")
			}
			_ = conn.Close()
		}
		c.cancel()

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.logger.Info("Disconnected from relay")
	})
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Incoming returns the ordered stream of messages from the relay
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.receive
}

// SendMessage queues a message for the relay
func (c *Client) SendMessage(msg *protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed || !c.connected {
		return ErrNotConnected
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

func (c *Client) sendTyped(typ protocol.MessageType, data any) error {
	msg, err := protocol.NewMessage(typ, data)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// Join asks for a seat in room. An empty room asks the relay to create one.
func (c *Client) Join(room, name string) error {
	return c.sendTyped(protocol.TypeJoin, protocol.JoinData{Room: room, Name: name})
}

// Leave gives up the seat in the current room
func (c *Client) Leave() error {
	return c.sendTyped(protocol.TypeLeave, nil)
}

// PublishInit sends the initial snapshot to the peer
func (c *Client) PublishInit(snapshot protocol.Snapshot) error {
	return c.sendTyped(protocol.TypeInitGameState, snapshot)
}

// PublishUpdate sends a delta snapshot to the peer
func (c *Client) PublishUpdate(snapshot protocol.Snapshot) error {
	return c.sendTyped(protocol.TypeUpdateGameState, snapshot)
}

// readPump handles incoming messages from the relay
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.receive)
	}()

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type)

		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing messages to the relay
func (c *Client) writePump() {
	ticker := c.clock.NewTicker(pingPeriod, "client", "ping")
	defer func() {
		ticker.Stop()
		close(c.written)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
