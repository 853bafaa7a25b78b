package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SummaryEvent is the websocket message sent after each aggregation.
type SummaryEvent struct {
	Type    string                  `json:"type"`
	Summary *models.PositionSummary `json:"summary"`
}

// SummaryHub manages websocket clients and broadcasts fresh summaries.
type SummaryHub struct {
	clients    map[*hubClient]bool
	broadcast  chan *models.PositionSummary
	register   chan *hubClient
	unregister chan *hubClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *common.Logger
}

// hubClient represents a connected websocket client.
type hubClient struct {
	hub  *SummaryHub
	conn *websocket.Conn
	send chan []byte
}

// NewSummaryHub creates a new websocket hub.
func NewSummaryHub(logger *common.Logger) *SummaryHub {
	return &SummaryHub{
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan *models.PositionSummary, 16),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Should be called as a goroutine.
func (h *SummaryHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug().Int("clients", h.ClientCount()).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Int("clients", h.ClientCount()).Msg("WebSocket client disconnected")

		case summary := <-h.broadcast:
			data, err := json.Marshal(SummaryEvent{Type: "summary", Summary: summary})
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to marshal summary event")
				continue
			}

			h.mu.RLock()
			var slow []*hubClient
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop signals the hub's event loop to exit.
func (h *SummaryHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a summary for every connected client. Drops the summary
// when the queue is full; the next refresh supersedes it.
func (h *SummaryHub) Broadcast(summary *models.PositionSummary) {
	select {
	case h.broadcast <- summary:
	default:
		h.logger.Warn().Msg("WebSocket broadcast channel full, dropping summary")
	}
}

// ServeWS upgrades an HTTP connection to websocket and registers the client.
// The current summary, if any, is sent straight away.
func (h *SummaryHub) ServeWS(w http.ResponseWriter, r *http.Request, current *models.PositionSummary) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &hubClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}

	if current != nil {
		if data, err := json.Marshal(SummaryEvent{Type: "summary", Summary: current}); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (h *SummaryHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump sends messages from the send channel to the websocket connection.
func (c *hubClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump reads from the connection only to detect close.
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
