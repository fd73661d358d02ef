package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fundledger/internal/auth"
	"fundledger/internal/core"
)

// FeedHub fans live activity updates out to websocket subscribers.
type FeedHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.Mutex
	stopOnce   sync.Once
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine.
func (h *FeedHub) Start() {
	go func() {
		for {
			select {
			case client := <-h.register:
				h.mu.Lock()
				h.clients[client] = true
				h.mu.Unlock()
				slog.Info("Feed subscriber connected", "subscribers", h.count())
			case client := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					client.Close()
				}
				h.mu.Unlock()
				slog.Info("Feed subscriber disconnected", "subscribers", h.count())
			case message := <-h.broadcast:
				h.mu.Lock()
				for client := range h.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						slog.Error("Failed to push feed update", "error", err)
						client.Close()
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			case <-h.done:
				h.mu.Lock()
				for client := range h.clients {
					client.Close()
					delete(h.clients, client)
				}
				h.mu.Unlock()
				return
			}
		}
	}()
}

// Stop closes every subscriber connection and ends the hub loop.
func (h *FeedHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *FeedHub) count() int {
	return len(h.clients)
}

// release detaches a subscriber, tolerating a hub that is already stopped.
func (h *FeedHub) release(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

// feedUpdate is the wire shape pushed to websocket subscribers.
type feedUpdate struct {
	Op            string    `json:"op"`
	Actor         string    `json:"actor"`
	TransactionID int64     `json:"transaction_id"`
	Detail        string    `json:"detail"`
	Timestamp     time.Time `json:"timestamp"`
}

// broadcastActivity pushes a mutation to live subscribers. Best effort;
// the durable feed is written by the worker from the bus.
func (s *Server) broadcastActivity(op, actor string, tx core.Transaction) {
	detail := op
	if tx.Kind != "" {
		detail = op + "d " + string(tx.Kind) + " " + core.FormatCents(tx.Amount.Cents) + " (" + tx.Category + ")"
	}
	payload, err := json.Marshal(feedUpdate{
		Op:            op,
		Actor:         actor,
		TransactionID: tx.ID,
		Detail:        detail,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return
	}
	select {
	case s.hub.broadcast <- payload:
	default:
		slog.Warn("Feed broadcast buffer full, dropping update")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleFeedWS upgrades the connection and streams activity updates until
// the client goes away.
func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}
	if !caller.Can(auth.CapView) {
		writeError(w, http.StatusForbidden, "forbidden", "caller lacks required capability")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	h := s.hub
	h.register <- conn

	// Drain client frames so pings are answered; any read error means the
	// client is gone. The hub may already be stopped by then, so release
	// must not block on the unregister channel.
	go func() {
		defer h.release(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
