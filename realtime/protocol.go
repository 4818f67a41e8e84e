package realtime

import (
	"strings"

	"securechat/backend/models"
)

// 協定事件
const (
	EventConnectionEstablished = "realtime:connection_established"
	EventSubscribe             = "realtime:subscribe"
	EventUnsubscribe           = "realtime:unsubscribe"
	EventSubscriptionSucceeded = "realtime:subscription_succeeded"
	EventSubscriptionError     = "realtime:subscription_error"
	EventSubscriptionRevoked   = "realtime:subscription_revoked"
	EventMemberAdded           = "realtime:member_added"
	EventMemberRemoved         = "realtime:member_removed"
	EventError                 = "realtime:error"

	// 只在 broker 之間流動，不會送到客戶端
	eventRevoke = "realtime:internal_revoke"
)

// ClientEventPrefix 客戶端觸發的事件必須以此開頭
const ClientEventPrefix = "client-"

// IsClientEvent 判斷是否為客戶端事件
func IsClientEvent(event string) bool {
	return strings.HasPrefix(event, ClientEventPrefix) && len(event) > len(ClientEventPrefix)
}

// ConnectionEstablished 是連線建立後伺服器送出的第一個訊框
type ConnectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"` // 秒
}

// SubscribeRequest 是訂閱頻道的請求
type SubscribeRequest struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data"`
}

// UnsubscribeRequest 是取消訂閱的請求
type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

// SubscriptionSucceeded 帶著目前的完整成員列表
type SubscriptionSucceeded struct {
	Members []models.PresenceMember `json:"members"`
}

// SubscriptionError 訂閱失敗的原因
type SubscriptionError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// ErrorPayload 一般協定錯誤
type ErrorPayload struct {
	Error string `json:"error"`
}

type revokePayload struct {
	Role models.Role `json:"role"`
}
