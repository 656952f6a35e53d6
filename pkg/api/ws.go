package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dropdeck/dropdeck/pkg/service"
	"github.com/dropdeck/dropdeck/pkg/types"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxSendChannelSize = 256
)

// Event types pushed over the progress feed
const (
	EventTypeProgress = "progress"
	EventTypeFinished = "finished"
	EventTypeStats    = "stats"
)

// FeedEvent is one message on the websocket progress feed
type FeedEvent struct {
	Type      string               `json:"type"`
	File      *types.ProgressEvent `json:"file,omitempty"`
	Error     string               `json:"error,omitempty"`
	Stats     *types.GlobalStats   `json:"stats,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// ProgressHub fans upload lifecycle events out to websocket clients and
// pushes a stats snapshot on a fixed interval. It is the push variant of
// the dashboard's poll: same data, delivered instead of fetched.
//
// Slow clients never block an upload; a client whose send buffer is full
// simply misses events.
type ProgressHub struct {
	stats    service.StatsService
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu       sync.RWMutex
	clients  map[*wsClient]bool
	shutdown chan struct{}
	once     sync.Once
}

// NewProgressHub creates a hub pushing stats snapshots every interval
func NewProgressHub(stats service.StatsService, interval time.Duration) *ProgressHub {
	if interval <= 0 {
		interval = time.Second
	}
	hub := &ProgressHub{
		stats:    stats,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   log.New(os.Stdout, "[ProgressHub] ", log.LstdFlags),
		clients:  make(map[*wsClient]bool),
		shutdown: make(chan struct{}),
	}

	go hub.statsLoop()
	return hub
}

// OnFileProgress implements service.Listener
func (h *ProgressHub) OnFileProgress(event types.ProgressEvent) {
	h.broadcast(FeedEvent{
		Type:      EventTypeProgress,
		File:      &event,
		Timestamp: time.Now(),
	})
}

// OnFileFinished implements service.Listener
func (h *ProgressHub) OnFileFinished(event types.ProgressEvent, err error) {
	feed := FeedEvent{
		Type:      EventTypeFinished,
		File:      &event,
		Timestamp: time.Now(),
	}
	if err != nil {
		feed.Error = err.Error()
	}
	h.broadcast(feed)
}

// Handle upgrades the request and serves the feed until the client
// disconnects
func (h *ProgressHub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, maxSendChannelSize),
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go client.writePump()
	client.readPump()

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
}

// Shutdown stops the stats loop and disconnects all clients
func (h *ProgressHub) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*wsClient]bool)
}

func (h *ProgressHub) statsLoop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.shutdown:
			return
		case <-ticker.C:
			if h.stats == nil || !h.hasClients() {
				continue
			}
			stats, err := h.stats.GetGlobalStats(context.Background())
			if err != nil {
				continue
			}
			h.broadcast(FeedEvent{
				Type:      EventTypeStats,
				Stats:     &stats,
				Timestamp: time.Now(),
			})
		}
	}
}

func (h *ProgressHub) hasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

func (h *ProgressHub) broadcast(event FeedEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.sendRaw(data)
	}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *wsClient) sendRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		// Buffer full, drop the event.
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// readPump discards client messages; the feed is one-way. It returns
// when the connection drops.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
