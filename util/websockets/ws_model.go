package websockets

import (
	"sync"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types
const (
	MsgTypeProjection = "projection"
	MsgTypeClosed     = "session_closed"
	MsgTypePing       = "ping"
)

// Client is one socket watching a session. It holds at most one unwritten
// message; a newer one replaces it.
type Client struct {
	Conn      *websocket.Conn
	SessionID string

	mu       sync.Mutex
	next     *Message
	final    bool
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type ProjectionHub struct {
	clients    map[string]map[*websocket.Conn]*Client
	register   chan registration
	unregister chan *Client
	closeAll   chan string
	flush      chan struct{}
	quit       chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[string]model.Projection
}

type registration struct {
	client  *Client
	initial *model.Projection
}

// Message is what the hub writes to sockets.
type Message struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id"`
	Projection *model.Projection `json:"projection,omitempty"`
}
