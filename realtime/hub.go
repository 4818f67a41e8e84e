// Package realtime 是自架的 presence 頻道服務：WebSocket 連線、頻道訂閱、成員進出通知與事件分送。
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"securechat/backend/models"

	"github.com/google/uuid"
)

// GrantVerifier 驗證頻道授權並取出成員資料
type GrantVerifier interface {
	Verify(auth, socketID, channel string) (models.PresenceMember, error)
}

// Admission 在訂閱當下重新確認成員是否仍可加入頻道，例如聊天室已停用或刪除
type Admission interface {
	Admit(ctx context.Context, channel string, member models.PresenceMember) error
}

// Hub 維護本實例所有連線與頻道訂閱；跨實例的分送交給 Broker
type Hub struct {
	verifier  GrantVerifier
	admission Admission
	broker    Broker
	presence  PresenceStore

	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[*Client]bool

	inbound chan Envelope
	done    chan struct{}
}

// NewHub 創建並返回一個新的 Hub 實例；admission 為 nil 時只驗證授權簽章
func NewHub(verifier GrantVerifier, admission Admission, broker Broker, presence PresenceStore) *Hub {
	return &Hub{
		verifier:  verifier,
		admission: admission,
		broker:    broker,
		presence:  presence,
		clients:   make(map[string]*Client),
		channels:  make(map[string]map[*Client]bool),
		inbound:   make(chan Envelope, 1024),
		done:      make(chan struct{}),
	}
}

// Run 啟動 broker 並處理分送迴圈，直到 ctx 結束
func (h *Hub) Run(ctx context.Context) error {
	if err := h.broker.Start(ctx, h.enqueue); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return nil
		case env := <-h.inbound:
			h.dispatch(env)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) enqueue(env Envelope) {
	select {
	case h.inbound <- env:
	case <-h.done:
	}
}

// Publish 由伺服器端發布事件到頻道上的所有訂閱者
func (h *Hub) Publish(ctx context.Context, channel, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, Envelope{Channel: channel, Event: event, Data: raw})
}

// Revoke 強制讓頻道上某個角色的所有連線取消訂閱（所有實例）
func (h *Hub) Revoke(ctx context.Context, channel string, role models.Role) error {
	raw, err := json.Marshal(revokePayload{Role: role})
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, Envelope{Channel: channel, Event: eventRevoke, Data: raw})
}

// ServeWS 處理 WebSocket 連線請求
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := newClient(h, conn, uuid.NewString())
	h.mu.Lock()
	h.clients[client.socketID] = client
	h.mu.Unlock()

	client.sendEvent(EventConnectionEstablished, "", ConnectionEstablished{
		SocketID:        client.socketID,
		ActivityTimeout: int(pongWait.Seconds()),
	})

	go client.writePump()
	client.readPump() // readPump 會在連線關閉時自動移除客戶端
}

// ClientCount 回傳本實例的連線數
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Members 回傳頻道目前的成員
func (h *Hub) Members(ctx context.Context, channel string) ([]models.PresenceMember, error) {
	return h.presence.Members(ctx, channel)
}

func (h *Hub) subscribe(ctx context.Context, c *Client, req SubscribeRequest) {
	member, err := h.verifier.Verify(req.Auth, c.socketID, req.Channel)
	if err != nil {
		log.Printf("[hub] rejected subscription of %s to %s: %v", c.socketID, req.Channel, err)
		c.sendEvent(EventSubscriptionError, req.Channel, SubscriptionError{Status: http.StatusUnauthorized, Error: "invalid channel authorization"})
		return
	}

	c.mu.Lock()
	_, already := c.subs[req.Channel]
	if !already {
		c.subs[req.Channel] = member
	}
	c.mu.Unlock()

	if !already {
		first, err := h.presence.Add(ctx, req.Channel, member)
		if err != nil {
			c.mu.Lock()
			delete(c.subs, req.Channel)
			c.mu.Unlock()
			log.Printf("[hub] presence add failed on %s: %v", req.Channel, err)
			c.sendEvent(EventSubscriptionError, req.Channel, SubscriptionError{Status: http.StatusServiceUnavailable, Error: "presence unavailable"})
			return
		}

		h.mu.Lock()
		if h.channels[req.Channel] == nil {
			h.channels[req.Channel] = make(map[*Client]bool)
		}
		h.channels[req.Channel][c] = true
		h.mu.Unlock()

		// 先加入頻道再檢查聊天室狀態：檢查之後才發生的撤銷一定找得到這條連線
		if err := h.admit(ctx, req.Channel, member); err != nil {
			h.detach(ctx, c, req.Channel)
			log.Printf("[hub] refused %s on %s after grant check: %v", c.socketID, req.Channel, err)
			c.sendEvent(EventSubscriptionError, req.Channel, admissionError(err))
			return
		}

		if first {
			h.publishMember(ctx, req.Channel, EventMemberAdded, member, c.socketID)
		}
		log.Printf("[hub] %s subscribed to %s as %s", c.socketID, req.Channel, member.UserInfo.Role)
	}

	members, err := h.presence.Members(ctx, req.Channel)
	if err != nil {
		log.Printf("[hub] presence members failed on %s: %v", req.Channel, err)
		members = []models.PresenceMember{member}
	}
	c.sendEvent(EventSubscriptionSucceeded, req.Channel, SubscriptionSucceeded{Members: members})
}

func (h *Hub) admit(ctx context.Context, channel string, member models.PresenceMember) error {
	if h.admission == nil {
		return nil
	}
	return h.admission.Admit(ctx, channel, member)
}

func admissionError(err error) SubscriptionError {
	switch {
	case errors.Is(err, models.ErrRoomInactive):
		return SubscriptionError{Status: http.StatusForbidden, Error: models.ErrRoomInactive.Error()}
	case errors.Is(err, models.ErrNotFound):
		return SubscriptionError{Status: http.StatusNotFound, Error: "chat room not found"}
	case errors.Is(err, models.ErrUnauthorized):
		return SubscriptionError{Status: http.StatusUnauthorized, Error: "invalid channel authorization"}
	default:
		return SubscriptionError{Status: http.StatusServiceUnavailable, Error: "room lookup unavailable"}
	}
}

func (h *Hub) unsubscribe(ctx context.Context, c *Client, channel string) bool {
	member, last, ok := h.detach(ctx, c, channel)
	if !ok {
		return false
	}
	if last {
		h.publishMember(ctx, channel, EventMemberRemoved, member, c.socketID)
	}
	log.Printf("[hub] %s unsubscribed from %s", c.socketID, channel)
	return true
}

// detach 移除訂閱與 presence 計數，不發布任何事件
func (h *Hub) detach(ctx context.Context, c *Client, channel string) (models.PresenceMember, bool, bool) {
	c.mu.Lock()
	member, ok := c.subs[channel]
	delete(c.subs, channel)
	c.mu.Unlock()
	if !ok {
		return models.PresenceMember{}, false, false
	}

	h.mu.Lock()
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.channels, channel) // 如果頻道沒有訂閱者了，就刪除
		}
	}
	h.mu.Unlock()

	last, err := h.presence.Remove(ctx, channel, member)
	if err != nil {
		log.Printf("[hub] presence remove failed on %s: %v", channel, err)
		return member, false, true
	}
	return member, last, true
}

func (h *Hub) publishMember(ctx context.Context, channel, event string, member models.PresenceMember, except string) {
	raw, err := json.Marshal(member)
	if err != nil {
		return
	}
	env := Envelope{Channel: channel, Event: event, Data: raw, ExceptSocket: except}
	if err := h.broker.Publish(ctx, env); err != nil {
		log.Printf("[hub] failed to publish %s on %s: %v", event, channel, err)
	}
}

func (h *Hub) relayClientEvent(ctx context.Context, c *Client, frame models.Frame) {
	env := Envelope{Channel: frame.Channel, Event: frame.Event, Data: frame.Data, ExceptSocket: c.socketID}
	if err := h.broker.Publish(ctx, env); err != nil {
		log.Printf("[hub] failed to relay %s on %s: %v", frame.Event, frame.Channel, err)
	}
}

// removeClient 取消所有訂閱並關閉發送通道
func (h *Hub) removeClient(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	for _, channel := range c.channels() {
		h.unsubscribe(ctx, c, channel)
	}

	h.mu.Lock()
	delete(h.clients, c.socketID)
	h.mu.Unlock()
	c.closeSend()
}

// dispatch 在 Run 迴圈中執行，依序送出，維持每個訂閱者的 FIFO
func (h *Hub) dispatch(env Envelope) {
	if env.Event == eventRevoke {
		h.revokeLocal(env)
		return
	}

	frame := models.Frame{Event: env.Event, Channel: env.Channel, Data: env.Data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.channels[env.Channel] {
		if client.socketID == env.ExceptSocket {
			continue
		}
		if !client.trySend(frame) {
			// 客戶端緩衝滿了：關閉連線，readPump 會負責清理
			log.Printf("[hub] client %s is too slow, disconnecting", client.socketID)
			go client.conn.Close()
		}
	}
}

func (h *Hub) revokeLocal(env Envelope) {
	var payload revokePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("[hub] malformed revoke on %s: %v", env.Channel, err)
		return
	}

	h.mu.RLock()
	var victims []*Client
	for client := range h.channels[env.Channel] {
		if member, ok := client.subscription(env.Channel); ok && member.UserInfo.Role == payload.Role {
			victims = append(victims, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range victims {
		// unsubscribe 會再經過 broker 發布 member_removed，不能在 dispatch 迴圈內同步執行
		go func(c *Client) {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if h.unsubscribe(ctx, c, env.Channel) {
				c.sendEvent(EventSubscriptionRevoked, env.Channel, ErrorPayload{Error: models.ErrRoomInactive.Error()})
			}
		}(client)
	}
	if len(victims) > 0 {
		log.Printf("[hub] revoked %d %s subscription(s) on %s", len(victims), payload.Role, env.Channel)
	}
}

// closeAllClients 關閉所有連線
func (h *Hub) closeAllClients() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.closeSend()
	}
	if err := h.broker.Close(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[hub] broker close: %v", err)
	}
}
