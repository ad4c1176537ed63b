package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/kethal/orderbot/internal/logging"
)

// ErrClientClosed is returned by Write after Close has been called
var ErrClientClosed = errors.New("protocol client is closed")

const writeTimeout = 10 * time.Second

// Client is the protocol collaborator: it owns the websocket
// transport, decodes inbound frames into named events and writes
// outbound packets. Handshake details beyond the login packet live on
// the gateway side; the client treats the stream as typed frames.
type Client struct {
	conn    *websocket.Conn
	handler EventHandler
	logger  *logging.Logger

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to the gateway, sends the login packet and starts the
// read loop. Every decoded frame is delivered to handler; read
// failures surface as a single "close" event.
func Dial(ctx context.Context, serverURL, username string, handler EventHandler, logger *logging.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", serverURL, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:         conn,
		handler:      handler,
		logger:       logger,
		lastActivity: time.Now(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	if err := c.Write(PacketLogin, LoginPacket{Username: username}); err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "login failed")
		return nil, fmt.Errorf("failed to send login: %w", err)
	}

	go c.readLoop(loopCtx)

	return c, nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Debugf("read loop ended: %v", err)
				c.handler(Event{Name: EventClose})
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			// Malformed frames surface as error events so the
			// ingress classifier can decide whether they matter.
			payload, _ := json.Marshal(ErrorPacket{
				Message: fmt.Sprintf("failed to decode frame: %v", err),
			})
			c.handler(Event{Name: EventError, Payload: payload})
			continue
		}

		c.mu.Lock()
		c.lastActivity = time.Now()
		c.mu.Unlock()

		c.handler(Event{Name: f.Name, Payload: f.Payload})
	}
}

// Write marshals payload and sends it as a named packet
func (c *Client) Write(name string, payload interface{}) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.mu.Unlock()

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", name, err)
		}
		raw = data
	}

	data, err := json.Marshal(frame{Name: name, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

// LastActivity returns the time the last frame was received
func (c *Client) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Close tears down the transport. Safe to call multiple times; after
// the first call no further events are delivered.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	<-c.done
	return err
}
