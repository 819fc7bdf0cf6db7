package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"taskboard/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// BoardMessage 推送到看板订阅者的消息
type BoardMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	BoardID   string      `json:"board_id"`
	Timestamp time.Time   `json:"timestamp"`
}

type BoardClient struct {
	ID      string
	BoardID string
	Conn    *websocket.Conn
	Send    chan BoardMessage
	Hub     *BoardHub
}

// BoardHub keeps websocket subscribers grouped by board.
type BoardHub struct {
	clients    map[string]*BoardClient
	broadcast  chan BoardMessage
	register   chan *BoardClient
	unregister chan *BoardClient
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logrus.Logger
	authorize  func(c *gin.Context, boardID string) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS 由 gin 中间件负责
	},
}

func NewBoardHub(logger *logrus.Logger) *BoardHub {
	if logger == nil {
		logger = logrus.New()
	}
	return &BoardHub{
		clients:    make(map[string]*BoardClient),
		broadcast:  make(chan BoardMessage, 64),
		register:   make(chan *BoardClient),
		unregister: make(chan *BoardClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *BoardHub) Run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.ID] = client
			h.mutex.Unlock()
			h.logger.Debugf("board hub: client %s joined board %s", client.ID, client.BoardID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for id, client := range h.clients {
				if client.BoardID != message.BoardID {
					continue
				}
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, id)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Stop ends Run and closes every client.
func (h *BoardHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// SetAuthorizer installs the check run before a subscriber is upgraded.
func (h *BoardHub) SetAuthorizer(fn func(c *gin.Context, boardID string) error) {
	h.authorize = fn
}

// HandleWebSocket upgrades GET /ws?board_id=... and subscribes the caller.
func (h *BoardHub) HandleWebSocket(c *gin.Context) {
	boardID := c.Query("board_id")
	if boardID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad Request", "message": "board_id is required"})
		return
	}
	if h.authorize != nil {
		if err := h.authorize(c, boardID); err != nil {
			status := apperr.StatusOf(err)
			c.JSON(status, gin.H{"error": http.StatusText(status), "message": err.Error()})
			return
		}
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("board hub: upgrade failed: %v", err)
		return
	}

	client := &BoardClient{
		ID:      fmt.Sprintf("client_%d", time.Now().UnixNano()),
		BoardID: boardID,
		Conn:    conn,
		Send:    make(chan BoardMessage, 256),
		Hub:     h,
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

// Broadcast queues msg for every subscriber of boardID.
func (h *BoardHub) Broadcast(boardID string, msg BoardMessage) {
	msg.BoardID = boardID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warnf("board hub: queue full, dropping %s for board %s", msg.Type, boardID)
	}
}

// Notify makes the hub a Notifier for automation notices.
func (h *BoardHub) Notify(_ context.Context, n AutomationNotice) error {
	if n.BoardID == "" {
		return fmt.Errorf("notice has no board")
	}
	if n.Type == "" {
		n.Type = noticeType
	}
	h.Broadcast(n.BoardID, BoardMessage{Type: n.Type, Data: n})
	return nil
}

func (h *BoardHub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump only drains control frames; subscribers never send commands.
func (c *BoardClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warnf("board hub: read error: %v", err)
			}
			return
		}
		var msg BoardMessage
		if json.Unmarshal(raw, &msg) == nil && msg.Type == "ping" {
			c.Hub.logger.Debugf("board hub: ping from %s", c.ID)
		}
	}
}

func (c *BoardClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				c.Hub.logger.Warnf("board hub: write failed: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
