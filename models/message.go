package models

import (
	"encoding/json"
)

// 頻道上的事件名稱
const (
	EventChatMessage = "chat-message"
	EventNoteUpdated = "note-updated"

	// client- 開頭的事件由客戶端直接在頻道上觸發，伺服器只負責轉送
	EventTypingStart = "client-typing-start"
	EventTypingStop  = "client-typing-stop"
)

// AccessKeyHeader 客戶以此 header 帶存取金鑰，伺服器與客戶端共用
const AccessKeyHeader = "X-Access-Key"

// ChatMessage 代表一則短暫訊息：只存在於頻道傳輸中與各端記憶體內
type ChatMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    Role   `json:"sender"`
	Timestamp int64  `json:"timestamp"` // Unix 毫秒
}

// TypingSignal 是輸入中 / 停止輸入事件的內容
type TypingSignal struct {
	Role Role `json:"role"`
}

// PresenceMember 是授權時附加在連線上的成員資料
type PresenceMember struct {
	UserID   string       `json:"user_id"`
	UserInfo PresenceInfo `json:"user_info"`
}

// PresenceInfo 目前只帶角色
type PresenceInfo struct {
	Role Role `json:"role"`
}

// ChannelGrant 是頻道授權端點回傳的簽章
type ChannelGrant struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data"`
}

// Frame 是 WebSocket 上傳遞的訊框
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewFrame 將 data 編碼後包成訊框
func NewFrame(event, channel string, data any) (Frame, error) {
	frame := Frame{Event: event, Channel: channel}
	if data == nil {
		return frame, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	frame.Data = raw
	return frame, nil
}

// ErrorResponse 結構體用於返回 JSON 格式的錯誤訊息
type ErrorResponse struct {
	Error string `json:"error"`
}
