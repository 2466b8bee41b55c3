package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub pushes market updates to connected browser clients. All client
// bookkeeping runs through the Run loop channels; handlers only touch the
// register/unregister/broadcast channels.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	maxMsgSize   int64

	clientCount int
	countMu     sync.RWMutex

	logger *logrus.Entry
}

// NewHub creates a new WebSocket hub
func NewHub(cfg *config.WebSocketConfig, logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// CORS policy is enforced at the HTTP layer
				return true
			},
		},
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxMsgSize:   cfg.MaxMessageSize,
		logger:       logger.WithField("component", "ws-hub"),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than block the loop
					delete(h.clients, client)
					close(client.send)
					h.setCount(len(h.clients))
				}
			}
		}
	}
}

// BroadcastMarketUpdate pushes the current snapshot, rate, and readiness
// state to all connected clients
func (h *Hub) BroadcastMarketUpdate(state models.DataState, assets []models.Asset, rate models.ExchangeRate) {
	message := models.WebSocketMessage{
		Event: "market_update",
		Data: models.MarketUpdate{
			State:  state,
			Assets: assets,
			Rate:   rate,
		},
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal market update")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, dropping market update")
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.countMu.RLock()
	defer h.countMu.RUnlock()
	return h.clientCount
}

// setCount updates the published client count; called from the Run loop
func (h *Hub) setCount(n int) {
	h.countMu.Lock()
	h.clientCount = n
	h.countMu.Unlock()
}

// closeAll closes every client connection on shutdown
func (h *Hub) closeAll() {
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.setCount(0)
}
