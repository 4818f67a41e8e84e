// Package rooms 實作聊天室目錄：建立、查詢、依角色更新、啟用/停用、刪除與金鑰驗證。
package rooms

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"securechat/backend/database"
	"securechat/backend/models"

	"github.com/google/uuid"
)

// Directory 包裝 RoomRepository，負責產生 ID / 存取金鑰與角色限制
type Directory struct {
	repo database.RoomRepository
	now  func() time.Time
}

func NewDirectory(repo database.RoomRepository) *Directory {
	return &Directory{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateRoomRequest 定義創建聊天室的請求體
type CreateRoomRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AdminNote   string `json:"adminNote"`
}

// Create 建立新聊天室；ID 與存取金鑰只在這裡產生一次
func (d *Directory) Create(ctx context.Context, req CreateRoomRequest) (*models.ChatRoom, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, models.ErrTitleRequired
	}

	now := d.now()
	room := &models.ChatRoom{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		AdminNote:   strings.TrimSpace(req.AdminNote),
		AccessKey:   uuid.NewString(),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.repo.Insert(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (d *Directory) List(ctx context.Context) ([]models.ChatRoom, error) {
	return d.repo.List(ctx)
}

func (d *Directory) Get(ctx context.Context, id string) (*models.ChatRoom, error) {
	return d.repo.FindByID(ctx, id)
}

// FindByID 讓 Directory 可以直接當作 auth.RoomLookup 使用
func (d *Directory) FindByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	return d.Get(ctx, id)
}

// Update 依角色過濾欄位後更新。
// 客戶只能改 clientNote，且聊天室必須是啟用狀態；管理員的 clientNote 會被忽略。
func (d *Directory) Update(ctx context.Context, id string, patch models.RoomPatch, role models.Role) (*models.ChatRoom, error) {
	allowed := patch.RestrictTo(role)

	room, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == models.RoleClient && !room.IsActive {
		return nil, models.ErrRoomInactive
	}
	if allowed.Title != nil {
		title := strings.TrimSpace(*allowed.Title)
		if title == "" {
			return nil, models.ErrTitleRequired
		}
		allowed.Title = &title
	}
	if allowed.IsEmpty() {
		return room, nil
	}
	return d.repo.Update(ctx, id, allowed)
}

// SetActive 啟用或停用聊天室（僅管理員）
func (d *Directory) SetActive(ctx context.Context, id string, active bool) (*models.ChatRoom, error) {
	return d.repo.Update(ctx, id, models.RoomPatch{IsActive: &active})
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	return d.repo.Delete(ctx, id)
}

// ValidateToken 檢查存取金鑰是否屬於該聊天室，不考慮啟用狀態。
// 金鑰相符時回傳聊天室，呼叫端據此再判斷是否啟用；聊天室不存在時回傳 ErrRoomNotFound。
func (d *Directory) ValidateToken(ctx context.Context, id, token string) (*models.ChatRoom, error) {
	if token == "" {
		return nil, models.ErrUnauthorized
	}
	room, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tokenMatches(room, token) {
		return nil, models.ErrUnauthorized
	}
	return room, nil
}

// tokenMatches 以固定時間比較存取金鑰
func tokenMatches(room *models.ChatRoom, token string) bool {
	if room == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(room.AccessKey), []byte(token)) == 1
}
