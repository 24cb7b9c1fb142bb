// Package ws pushes conversation events to connected console clients
// over WebSocket.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/auth"
)

// Event is one message pushed to console clients.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
	hub  *Hub
}

// Hub manages all console WebSocket connections and fans events out to
// them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	auth       *auth.Service
	mu         sync.RWMutex
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The console is token-authenticated; origin is not the gate.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub(authService *auth.Service) *Hub {
	hub := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		auth:       authService,
	}
	go hub.run()
	return hub
}

// Handle upgrades a console connection. The access token comes from the
// ?token query parameter because browsers cannot set headers on
// WebSocket upgrades.
func (h *Hub) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil || claims.Type != "access" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return err
	}

	cl := &client{
		conn: conn,
		send: make(chan Event, 256),
		hub:  h,
	}
	h.register <- cl

	go cl.writePump()
	go cl.readPump()
	return nil
}

// Broadcast fans an event out to every connected client. Never blocks:
// slow clients are dropped by the dispatch loop.
func (h *Hub) Broadcast(event string, data interface{}) {
	select {
	case h.broadcast <- Event{Type: event, Data: data, Timestamp: time.Now()}:
	default:
		log.Warn().Str("event", event).Msg("websocket broadcast queue full, event dropped")
	}
}

// ConnectedClients returns the number of connected console clients.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case cl := <-h.register:
			h.mu.Lock()
			h.clients[cl] = true
			h.mu.Unlock()
			cl.send <- Event{
				Type:      "connection",
				Data:      map[string]string{"status": "connected"},
				Timestamp: time.Now(),
			}

		case cl := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[cl]; ok {
				delete(h.clients, cl)
				close(cl.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for cl := range h.clients {
				select {
				case cl.send <- event:
				default:
					delete(h.clients, cl)
					close(cl.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Type == "ping" {
			select {
			case c.send <- Event{Type: "pong", Timestamp: time.Now()}:
			default:
				return
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(20 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
