// Package relay 將訊息蓋上 ID 與時間戳後直接發布到聊天室頻道，不寫入任何儲存。
package relay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"securechat/backend/auth"
	"securechat/backend/models"

	"github.com/google/uuid"
)

// Publisher 是即時頻道的發布端
type Publisher interface {
	Publish(ctx context.Context, channel, event string, data any) error
}

// Relay 負責送出訊息
type Relay struct {
	rooms     auth.RoomLookup
	publisher Publisher
	now       func() time.Time
}

func New(rooms auth.RoomLookup, publisher Publisher) *Relay {
	return &Relay{rooms: rooms, publisher: publisher, now: time.Now}
}

// Send 驗證內容與權限後發布一次。
// 不等待任何訂閱者的確認，也不重試。
func (r *Relay) Send(ctx context.Context, roomID, content string, creds auth.Credentials) (models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.ChatMessage{}, models.ErrEmptyContent
	}

	identity, err := auth.ResolveIdentity(ctx, r.rooms, roomID, creds)
	if err != nil {
		return models.ChatMessage{}, err
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    identity.Role,
		Timestamp: r.now().UnixMilli(),
	}

	if err := r.publisher.Publish(ctx, auth.ChannelName(roomID), models.EventChatMessage, msg); err != nil {
		log.Printf("[relay] publish to room %s failed: %v", roomID, err)
		return models.ChatMessage{}, fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	return msg, nil
}
