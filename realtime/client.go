package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"securechat/backend/models"

	"github.com/gorilla/websocket"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間。
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期。
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// 每個客戶端的發送緩衝，滿了代表客戶端太慢，直接斷線
	sendBufferSize = 256

	// presence 與 broker 操作的逾時
	opTimeout = 5 * time.Second
)

// upgrader 用於將 HTTP 連線升級為 WebSocket 連線
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 權限由頻道授權簽章決定，不依賴 cookie，因此允許所有來源
		return true
	},
}

// Client 代表一條 WebSocket 連線
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan models.Frame
	socketID string

	mu     sync.Mutex
	subs   map[string]models.PresenceMember // 頻道 -> 授權時的成員資料
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, socketID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan models.Frame, sendBufferSize),
		socketID: socketID,
		subs:     make(map[string]models.PresenceMember),
	}
}

// trySend 不阻塞地放入發送緩衝，回傳 false 表示緩衝已滿或連線已關閉
func (c *Client) trySend(frame models.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) sendEvent(event, channel string, data any) {
	frame, err := models.NewFrame(event, channel, data)
	if err != nil {
		log.Printf("[hub] failed to encode %s for %s: %v", event, c.socketID, err)
		return
	}
	if !c.trySend(frame) {
		log.Printf("[hub] dropping %s for %s: send buffer unavailable", event, c.socketID)
	}
}

// closeSend 關閉發送通道，writePump 會送出 CloseMessage 後結束
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) subscription(channel string) (models.PresenceMember, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	member, ok := c.subs[channel]
	return member, ok
}

func (c *Client) channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]string, 0, len(c.subs))
	for channel := range c.subs {
		channels = append(channels, channel)
	}
	return channels
}

// 讀取用戶傳來的訊框，並交給 Hub 處理
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[hub] read error on %s: %v", c.socketID, err)
			}
			break
		}

		var frame models.Frame
		if err := json.Unmarshal(p, &frame); err != nil {
			c.sendEvent(EventError, "", ErrorPayload{Error: "malformed frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame models.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch {
	case frame.Event == EventSubscribe:
		var req SubscribeRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.Channel == "" {
			c.sendEvent(EventSubscriptionError, req.Channel, SubscriptionError{Status: http.StatusBadRequest, Error: "malformed subscribe request"})
			return
		}
		c.hub.subscribe(ctx, c, req)

	case frame.Event == EventUnsubscribe:
		var req UnsubscribeRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.sendEvent(EventError, "", ErrorPayload{Error: "malformed unsubscribe request"})
			return
		}
		c.hub.unsubscribe(ctx, c, req.Channel)

	case IsClientEvent(frame.Event):
		if _, ok := c.subscription(frame.Channel); !ok {
			c.sendEvent(EventError, frame.Channel, ErrorPayload{Error: "client events require a subscription"})
			return
		}
		c.hub.relayClientEvent(ctx, c, frame)

	default:
		c.sendEvent(EventError, frame.Channel, ErrorPayload{Error: "unsupported event " + frame.Event})
	}
}

// 接收 Hub 送來的訊框，寫給遠端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 如果這個 channel 被關閉了（ok == false），就送出 CloseMessage
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				log.Printf("[hub] write error on %s: %v", c.socketID, err)
				return
			}

		// 定時 ping 以保持連線活躍並偵測對方是否仍在線
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
