package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aibridge/aibridge/pkg/logger"
)

// frame is the wire format shared by requests, responses and events. A frame
// with a Command is a request, with an ID and no Command a response, with an
// Event a pushed event.
type frame struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Args    any             `json:"args,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSChannel implements Channel over a websocket connection to the local
// runtime bridge.
type WSChannel struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan frame
	listeners map[string]map[int]func(json.RawMessage)
	nextSubID int
	closed    bool
}

// Dial connects to the runtime bridge at url (ws://host:port/path).
func Dial(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to runtime bridge at %s: %w", url, err)
	}

	c := &WSChannel{
		conn:      conn,
		pending:   make(map[string]chan frame),
		listeners: make(map[string]map[int]func(json.RawMessage)),
	}
	go c.readPump()
	return c, nil
}

func (c *WSChannel) readPump() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.failAll(err)
			return
		}

		switch {
		case f.Event != "":
			c.dispatchEvent(f.Event, f.Payload)
		case f.ID != "":
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			if ok {
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		default:
			logger.DebugC("ipc", "dropping frame with neither id nor event")
		}
	}
}

func (c *WSChannel) dispatchEvent(event string, payload json.RawMessage) {
	c.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(c.listeners[event]))
	for _, h := range c.listeners[event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (c *WSChannel) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan frame)
	c.closed = true
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- frame{Error: fmt.Sprintf("runtime bridge connection lost: %v", err)}
	}
}

func (c *WSChannel) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	id := uuid.NewString()
	reply := make(chan frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("runtime bridge connection is closed")
	}
	c.pending[id] = reply
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(frame{ID: id, Command: command, Args: args})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to send %s: %w", command, err)
	}

	select {
	case f := <-reply:
		if f.Error != "" {
			return nil, fmt.Errorf("%s failed: %s", command, f.Error)
		}
		return f.Result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *WSChannel) Listen(event string, handler func(payload json.RawMessage)) (Unsubscribe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("runtime bridge connection is closed")
	}

	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]func(json.RawMessage))
	}
	id := c.nextSubID
	c.nextSubID++
	c.listeners[event][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners[event], id)
			c.mu.Unlock()
		})
	}, nil
}

// Close tears down the connection. In-flight invokes fail.
func (c *WSChannel) Close() error {
	return c.conn.Close()
}
