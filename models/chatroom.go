package models

import (
	"time"
)

// ChatRoom 代表一個安全聊天室的元資料（訊息本身永遠不會存進資料庫）
type ChatRoom struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	AdminNote   string    `bson:"adminNote,omitempty" json:"adminNote,omitempty"`   // 管理員的置頂筆記
	ClientNote  string    `bson:"clientNote,omitempty" json:"clientNote,omitempty"` // 客戶的置頂筆記
	AccessKey   string    `bson:"accessKey" json:"accessKey"`                       // 客戶端的存取金鑰，只能由管理員看到
	IsActive    bool      `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// RoomView 是給客戶端看的聊天室資料，不包含 AccessKey
type RoomView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AdminNote   string    `json:"adminNote,omitempty"`
	ClientNote  string    `json:"clientNote,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ClientView 移除存取金鑰後回傳
func (r *ChatRoom) ClientView() RoomView {
	return RoomView{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		AdminNote:   r.AdminNote,
		ClientNote:  r.ClientNote,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// RoomPatch 是部分更新，nil 代表不修改該欄位
type RoomPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	AdminNote   *string `json:"adminNote,omitempty"`
	ClientNote  *string `json:"clientNote,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// IsEmpty 表示沒有任何欄位需要更新
func (p RoomPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.AdminNote == nil && p.ClientNote == nil && p.IsActive == nil
}

// RestrictTo 依照角色過濾可寫入的欄位：
// 管理員不能寫 clientNote，客戶只能寫 clientNote
func (p RoomPatch) RestrictTo(role Role) RoomPatch {
	switch role {
	case RoleAdmin:
		p.ClientNote = nil
		return p
	case RoleClient:
		return RoomPatch{ClientNote: p.ClientNote}
	default:
		return RoomPatch{}
	}
}

// NoteUpdate 是置頂筆記更新後廣播到頻道上的內容
type NoteUpdate struct {
	AdminNote  string `json:"adminNote"`
	ClientNote string `json:"clientNote"`
	UpdatedBy  Role   `json:"updatedBy"`
}
