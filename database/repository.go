package database

import (
	"context"

	"securechat/backend/models"
)

//go:generate mockgen -destination=mocks/mock_room_repository.go -package=mocks securechat/backend/database RoomRepository

// RoomRepository 是聊天室元資料的儲存介面。
// 這裡刻意沒有任何寫入訊息的方法：訊息只存在於頻道上。
type RoomRepository interface {
	Insert(ctx context.Context, room *models.ChatRoom) error
	List(ctx context.Context) ([]models.ChatRoom, error)
	// FindByID 找不到時回傳 models.ErrRoomNotFound
	FindByID(ctx context.Context, id string) (*models.ChatRoom, error)
	// Update 套用部分更新並回傳更新後的聊天室（last-write-wins）
	Update(ctx context.Context, id string, patch models.RoomPatch) (*models.ChatRoom, error)
	Delete(ctx context.Context, id string) error
}
