package websockets

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	closeBuffer = 256
	writeWait   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewProjectionHub initializes a ProjectionHub
func NewProjectionHub(logger *zap.Logger) *ProjectionHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectionHub{
		clients:    make(map[string]map[*websocket.Conn]*Client),
		register:   make(chan registration),
		unregister: make(chan *Client),
		closeAll:   make(chan string, closeBuffer),
		flush:      make(chan struct{}, 1),
		quit:       make(chan struct{}),
		logger:     logger.Named("ws"),
		pending:    make(map[string]model.Projection),
	}
}

func newClient(conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		Conn:      conn,
		SessionID: sessionID,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// offer replaces whatever the client has not written yet. Nothing follows a
// final message.
func (c *Client) offer(m Message, final bool) {
	c.mu.Lock()
	if c.final {
		c.mu.Unlock()
		return
	}
	c.next = &m
	c.final = final
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) take() (*Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.next
	c.next = nil
	return m, c.final
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// Run tracks sockets per session and hands them their messages. It never
// writes to a socket itself.
func (hub *ProjectionHub) Run() {
	for {
		select {
		case <-hub.quit:
			for id := range hub.clients {
				hub.dropSession(id)
			}
			return

		case reg := <-hub.register:
			conns, ok := hub.clients[reg.client.SessionID]
			if !ok {
				conns = make(map[*websocket.Conn]*Client)
				hub.clients[reg.client.SessionID] = conns
			}
			conns[reg.client.Conn] = reg.client
			if reg.initial != nil {
				reg.client.offer(Message{Type: MsgTypeProjection, SessionID: reg.client.SessionID, Projection: reg.initial}, false)
			}

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.SessionID]; ok {
				if _, exists := conns[client.Conn]; exists {
					delete(conns, client.Conn)
					client.stop()
				}
				if len(conns) == 0 {
					delete(hub.clients, client.SessionID)
				}
			}

		case <-hub.flush:
			hub.mu.Lock()
			pending := hub.pending
			hub.pending = make(map[string]model.Projection, len(pending))
			hub.mu.Unlock()

			for id, p := range pending {
				p := p
				for _, client := range hub.clients[id] {
					client.offer(Message{Type: MsgTypeProjection, SessionID: id, Projection: &p}, false)
				}
			}

		case id := <-hub.closeAll:
			hub.dropSession(id)
		}
	}
}

func (hub *ProjectionHub) Stop() {
	hub.stopOnce.Do(func() {
		close(hub.quit)
	})
}

// writePump is the only writer of a client's socket. A slow peer holds up
// nobody but itself.
func (hub *ProjectionHub) writePump(client *Client) {
	defer client.Conn.Close()
	for {
		select {
		case <-client.done:
			return
		case <-client.wake:
		}
		m, final := client.take()
		if m != nil {
			if err := hub.write(client, *m); err != nil {
				hub.logger.Debug("dropping ws client", zap.String("session_id", client.SessionID), zap.Error(err))
				return
			}
		}
		if final {
			return
		}
	}
}

func (hub *ProjectionHub) write(client *Client, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		hub.logger.Error("error encoding ws message", zap.Error(err))
		return nil
	}
	client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return client.Conn.WriteMessage(websocket.TextMessage, payload)
}

func (hub *ProjectionHub) dropSession(id string) {
	for _, client := range hub.clients[id] {
		client.offer(Message{Type: MsgTypeClosed, SessionID: id}, true)
	}
	delete(hub.clients, id)
}

// Publish records p as the session's newest projection. It never blocks; a
// projection not yet handed to the sockets is replaced, so the last one
// always goes out.
func (hub *ProjectionHub) Publish(sessionID string, p model.Projection) {
	hub.mu.Lock()
	hub.pending[sessionID] = p
	hub.mu.Unlock()

	select {
	case hub.flush <- struct{}{}:
	default:
	}
}

// CloseSession tells the session's sockets it is gone and closes them.
func (hub *ProjectionHub) CloseSession(sessionID string) {
	select {
	case hub.closeAll <- sessionID:
	case <-hub.quit:
	}
}

// HandleConnections upgrades the request and streams the session's
// projections, starting with initial. Incoming frames are read to notice the
// peer going away; each ping frame calls onPing when it is set.
func (hub *ProjectionHub) HandleConnections(w http.ResponseWriter, r *http.Request, sessionID string, initial model.Projection, onPing func()) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	client := newClient(conn, sessionID)
	select {
	case hub.register <- registration{client: client, initial: &initial}:
	case <-hub.quit:
		conn.Close()
		return
	}
	go hub.writePump(client)

	defer func() {
		select {
		case hub.unregister <- client:
		case <-hub.quit:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var message Message
		if err := json.Unmarshal(msg, &message); err != nil {
			hub.logger.Debug("invalid ws frame", zap.Error(err))
			continue
		}
		if message.Type != MsgTypePing {
			hub.logger.Debug("ignoring ws message", zap.String("type", message.Type))
			continue
		}
		if onPing != nil {
			onPing()
		}
	}
}
