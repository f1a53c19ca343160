// Package bridge connects to a game client bridge over a websocket. The
// bridge process holds the actual game session; this side only sends chat
// lines and receives chat events.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/blockmindJS/blockmind/internal/chat"
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("bridge not connected")

const (
	// DefaultRedialInterval is the minimum delay between dial attempts.
	DefaultRedialInterval = 5 * time.Second
	writeTimeout          = 10 * time.Second
)

// Frame types on the wire.
const (
	FrameChat    = "chat"    // outbound line typed into the game chat
	FrameMessage = "message" // inbound chat event
)

// Frame is the JSON envelope exchanged with the bridge.
type Frame struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Source    string          `json:"source,omitempty"`
	Component *chat.Component `json:"json,omitempty"`
}

// Client is a chat.Transport backed by a websocket bridge.
type Client struct {
	url     string
	token   string
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	logger  *slog.Logger
	hub     chat.Hub

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithRedialInterval sets the minimum delay between dial attempts.
func WithRedialInterval(d time.Duration) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// NewClient creates a Client for the bridge at url. token, when set, is sent
// as a bearer token.
func NewClient(url, token string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		url:     url,
		token:   token,
		dialer:  websocket.DefaultDialer,
		limiter: rate.NewLimiter(rate.Every(DefaultRedialInterval), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run keeps a connection to the bridge open until ctx is cancelled,
// redialing at most once per redial interval.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("bridge dial failed", "url", c.url, "error", err)
			continue
		}

		c.logger.Info("bridge connected", "url", c.url)
		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("bridge disconnected", "error", err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %s: %w", c.url, resp.Status, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", c.url, err)
	}
	return conn, nil
}

// serve reads frames until the connection fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	})
	defer func() {
		stop()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}
		if f.Type != FrameMessage {
			continue
		}
		text := f.Text
		if text == "" {
			text = f.Component.PlainText()
		}
		c.hub.Publish(chat.Event{RawText: text, Source: f.Source, Component: f.Component})
	}
}

// Send writes line to the game chat.
func (c *Client) Send(ctx context.Context, line string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(Frame{Type: FrameChat, Text: line})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing chat frame: %w", err)
	}
	return nil
}

// Subscribe registers handler for inbound chat events.
func (c *Client) Subscribe(handler func(chat.Event)) func() {
	return c.hub.Subscribe(handler)
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

var _ chat.Transport = (*Client)(nil)
