package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	rooms  []string
	userID int64
}

// NewClient builds a connectionless client, used by callers that consume the
// send channel directly.
func NewClient(userID int64, rooms ...string) *Client {
	return &Client{send: make(chan []byte, sendBuffer), rooms: rooms, userID: userID}
}

// Messages is closed when the hub drops the client.
func (c *Client) Messages() <-chan []byte { return c.send }

// ServeWS upgrades the request and streams the given rooms to the caller
// until either side disconnects. Clients only listen; inbound frames are
// read to service pings and detect closure.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64, rooms []string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := NewClient(userID, rooms...)
	c.conn = conn
	if !h.Join(c) {
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump(h)
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
