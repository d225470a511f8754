// ABOUTME: WebSocket client for playsync protocol communication
// ABOUTME: Handles connection, handshake, and snapshot message routing
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Path is the WebSocket endpoint served by playsync servers
const Path = "/playsync"

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	UserID     string
	Name       string
	Version    int
	DeviceInfo DeviceInfo
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex // serializes writes, gorilla allows one writer

	// Message channels
	Snapshots    chan PlaybackSnapshot
	SaveAcks     chan SaveAck
	TimeSyncResp chan ServerTime
	Errors       chan ErrorMessage

	// State
	server    ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Version == 0 {
		config.Version = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:       config,
		Snapshots:    make(chan PlaybackSnapshot, 10),
		SaveAcks:     make(chan SaveAck, 10),
		TimeSyncResp: make(chan ServerTime, 10),
		Errors:       make(chan ErrorMessage, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:   c.config.ClientID,
		UserID:     c.config.UserID,
		Name:       c.config.Name,
		Version:    c.config.Version,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.send(TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch env.Type {
	case TypeServerHello:
	case TypeServerError:
		var serverErr ErrorMessage
		if err := env.Decode(&serverErr); err != nil {
			return err
		}
		return serverErr
	default:
		return fmt.Errorf("expected server/hello, got %s", env.Type)
	}

	var serverHello ServerHello
	if err := env.Decode(&serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.server = serverHello
	c.mu.Unlock()

	log.Printf("Handshake complete with server %s (ID: %s)", serverHello.Name, serverHello.ServerID)
	return nil
}

// send wraps payload in a Message and writes it
func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(Message{Type: msgType, Payload: payload})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Ignoring non-text message type %d", messageType)
			continue
		}
		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch env.Type {
	case TypeServerSnapshot:
		var snapshot PlaybackSnapshot
		if err := env.Decode(&snapshot); err != nil {
			log.Printf("Dropping snapshot: %v", err)
			return
		}
		select {
		case c.Snapshots <- snapshot:
		case <-c.ctx.Done():
		}

	case TypeServerSaved:
		var ack SaveAck
		if err := env.Decode(&ack); err != nil {
			log.Printf("Dropping save ack: %v", err)
			return
		}
		select {
		case c.SaveAcks <- ack:
		case <-c.ctx.Done():
		}

	case TypeServerTime:
		var timeMsg ServerTime
		if err := env.Decode(&timeMsg); err != nil {
			log.Printf("Dropping time response: %v", err)
			return
		}
		select {
		case c.TimeSyncResp <- timeMsg:
		case <-c.ctx.Done():
		}

	case TypeServerError:
		var serverErr ErrorMessage
		if err := env.Decode(&serverErr); err != nil {
			log.Printf("Dropping server error: %v", err)
			return
		}
		log.Printf("Server error: %s", serverErr.Message)
		select {
		case c.Errors <- serverErr:
		default:
		}

	default:
		log.Printf("Unknown message type: %s", env.Type)
	}
}

// Poll requests the current server snapshot. The reply arrives on Snapshots.
func (c *Client) Poll() error {
	return c.send(TypeClientPoll, PollRequest{})
}

// Save sends the local state for persistence. The ack arrives on SaveAcks.
func (c *Client) Save(save PlaybackSave) error {
	return c.send(TypeClientSave, save)
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.send(TypeClientTime, ClientTime{ClientTransmitted: t1})
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
