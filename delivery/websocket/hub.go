package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"taskboard/delivery/auth"
	"taskboard/task"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// Client represents a WebSocket client
type Client struct {
	ID      string
	OwnerID string
	Conn    *websocket.Conn
	Send    chan []byte
	Hub     *Hub
}

type envelope struct {
	ownerID string
	payload []byte
}

// Hub fans board events out to the connected clients of each owner.
// It implements task.EventPublisher.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	quit       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHub creates a new WebSocket hub. An empty origin list or "*" accepts any origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		quit:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Run starts the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.clients[client.OwnerID] == nil {
				h.clients[client.OwnerID] = make(map[*Client]bool)
			}
			h.clients[client.OwnerID][client] = true
			h.mutex.Unlock()
			h.logger.Debug("Client registered",
				zap.String("client_id", client.ID),
				zap.String("owner_id", client.OwnerID),
			)

		case client := <-h.unregister:
			h.mutex.Lock()
			h.remove(client)
			h.mutex.Unlock()
			h.logger.Debug("Client unregistered",
				zap.String("client_id", client.ID),
				zap.String("owner_id", client.OwnerID),
			)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients[msg.ownerID] {
				select {
				case client.Send <- msg.payload:
				default:
					h.logger.Warn("Client send buffer full, closing",
						zap.String("client_id", client.ID),
					)
					h.remove(client)
				}
			}
			h.mutex.Unlock()

		case <-h.quit:
			h.mutex.Lock()
			for _, owned := range h.clients {
				for client := range owned {
					h.remove(client)
				}
			}
			h.mutex.Unlock()
			return
		}
	}
}

// remove drops a client and closes its send channel. Callers hold the write lock.
func (h *Hub) remove(client *Client) {
	owned := h.clients[client.OwnerID]
	if _, ok := owned[client]; !ok {
		return
	}
	delete(owned, client)
	close(client.Send)
	if len(owned) == 0 {
		delete(h.clients, client.OwnerID)
	}
}

// Stop ends the event loop and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Publish queues an event for the owner's clients. Events are dropped when the
// queue is full so callers never block.
func (h *Hub) Publish(ownerID string, event task.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- envelope{ownerID: ownerID, payload: payload}:
	default:
		h.logger.Warn("Broadcast buffer full, event dropped",
			zap.String("type", event.Type),
			zap.String("owner_id", ownerID),
		)
	}
}

// ClientCount returns the number of connected clients of an owner
func (h *Hub) ClientCount(ownerID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[ownerID])
}

// HandleWebSocket upgrades an authenticated request to the owner's event stream
func (h *Hub) HandleWebSocket(c *gin.Context) {
	ownerID := auth.OwnerID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Hub:     h,
	}

	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// readPump drains the connection so control frames are processed. Clients never send data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.quit:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Debug("Unexpected close", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("Failed to write message", zap.String("client_id", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
