package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/bluescan/internal/detector"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	writeWait = 2 * time.Second

	// clientBuffer is the number of results queued per client before the
	// client is dropped.
	clientBuffer = 16
)

// ResultMessage is the websocket payload for one detection.
type ResultMessage struct {
	Found     bool             `json:"found"`
	Result    *detector.Result `json:"result,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

type resultClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ResultsHandler streams every detection result to websocket clients.
// It implements detector.Observer.
type ResultsHandler struct {
	clients map[*resultClient]struct{}
	mu      sync.Mutex
	logger  *zap.Logger
}

var _ detector.Observer = (*ResultsHandler)(nil)

// NewResultsHandler creates a ResultsHandler.
func NewResultsHandler(logger *zap.Logger) *ResultsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsHandler{
		clients: make(map[*resultClient]struct{}),
		logger:  logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &resultClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer h.remove(c)

	go h.writeLoop(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writeLoop delivers queued results until the queue is closed or a write
// fails. A failed write closes the connection, which ends ServeHTTP.
func (h *ResultsHandler) writeLoop(c *resultClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			c.conn.Close()
			return
		}
	}
}

// remove unregisters c and closes its queue. It is safe to call twice.
func (h *ResultsHandler) remove(c *resultClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *ResultsHandler) removeLocked(c *resultClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Clients returns the number of connected clients.
func (h *ResultsHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OnResult queues result for every connected client without waiting on
// the network. Clients whose queue is full are dropped.
func (h *ResultsHandler) OnResult(result *detector.Result) {
	msg, err := json.Marshal(ResultMessage{
		Found:     result != nil,
		Result:    result,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error("failed to encode result", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow websocket client")
			h.removeLocked(c)
			if c.conn != nil {
				c.conn.Close()
			}
		}
	}
}
