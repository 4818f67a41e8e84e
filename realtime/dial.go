package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"securechat/backend/models"

	"github.com/gorilla/websocket"
)

// ErrConnClosed 連線已關閉
var ErrConnClosed = errors.New("realtime connection closed")

// Conn 是 Go 端使用的 presence 頻道連線
type Conn struct {
	ws       *websocket.Conn
	socketID string
	frames   chan models.Frame

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial 連線到 WebSocket 端點，並等待伺服器送出 socket_id
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(deadline)
	}
	var first models.Frame
	if err := ws.ReadJSON(&first); err != nil {
		ws.Close()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	if first.Event != EventConnectionEstablished {
		ws.Close()
		return nil, fmt.Errorf("unexpected handshake event %q", first.Event)
	}
	var established ConnectionEstablished
	if err := json.Unmarshal(first.Data, &established); err != nil || established.SocketID == "" {
		ws.Close()
		return nil, fmt.Errorf("malformed handshake: %v", err)
	}
	ws.SetReadDeadline(time.Time{})

	c := &Conn{
		ws:       ws,
		socketID: established.SocketID,
		frames:   make(chan models.Frame, sendBufferSize),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SocketID 回傳伺服器配發的連線 ID
func (c *Conn) SocketID() string { return c.socketID }

// Frames 回傳收到的訊框；連線結束時會被關閉
func (c *Conn) Frames() <-chan models.Frame { return c.frames }

// Subscribe 以授權簽章訂閱頻道，結果會以 subscription_succeeded / subscription_error 訊框回報
func (c *Conn) Subscribe(channel string, grant models.ChannelGrant) error {
	return c.write(EventSubscribe, "", SubscribeRequest{
		Channel:     channel,
		Auth:        grant.Auth,
		ChannelData: grant.ChannelData,
	})
}

// Unsubscribe 取消訂閱
func (c *Conn) Unsubscribe(channel string) error {
	return c.write(EventUnsubscribe, "", UnsubscribeRequest{Channel: channel})
}

// Trigger 在頻道上觸發客戶端事件，事件名稱必須以 client- 開頭
func (c *Conn) Trigger(channel, event string, data any) error {
	if !IsClientEvent(event) {
		return fmt.Errorf("%w: client events must start with %q", models.ErrValidation, ClientEventPrefix)
	}
	return c.write(event, channel, data)
}

// Close 關閉連線
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) write(event, channel string, data any) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	frame, err := models.NewFrame(event, channel, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(frame); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		var frame models.Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("[realtime] connection %s lost: %v", c.socketID, err)
				}
			}
			return
		}
		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}
