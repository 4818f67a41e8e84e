// Package auth 決定每個連線或請求的角色，並簽發 presence 頻道的授權。
package auth

import (
	"context"
	"log"

	"securechat/backend/models"
)

// AdminUserID 是管理員在 presence 頻道上的固定 ID
const AdminUserID = "admin"

// clientIDPrefixLen 取存取金鑰前幾碼當作客戶的 presence ID
const clientIDPrefixLen = 8

// Credentials 是呼叫者提供的憑證：管理員 session 或存取金鑰
type Credentials struct {
	AdminSession bool
	AccessKey    string
}

// Identity 是解析後的角色與 presence 使用者 ID，不會被儲存
type Identity struct {
	Role   models.Role
	UserID string
}

// Member 轉成 presence 成員資料
func (id Identity) Member() models.PresenceMember {
	return models.PresenceMember{
		UserID:   id.UserID,
		UserInfo: models.PresenceInfo{Role: id.Role},
	}
}

// RoomLookup 由 rooms.Directory 實作：依 ID 查詢聊天室，以及驗證存取金鑰
type RoomLookup interface {
	FindByID(ctx context.Context, id string) (*models.ChatRoom, error)
	ValidateToken(ctx context.Context, id, token string) (*models.ChatRoom, error)
}

// ClientUserID 由存取金鑰前綴推導客戶的 presence ID
func ClientUserID(accessKey string) string {
	if len(accessKey) > clientIDPrefixLen {
		accessKey = accessKey[:clientIDPrefixLen]
	}
	return "client-" + accessKey
}

// ResolveIdentity 是所有需要權限的入口（加入頻道、送訊息、更新筆記）共用的唯一判斷：
//  1. 聊天室必須存在
//  2. 有管理員 session 就是 admin，不看金鑰與啟用狀態
//  3. 否則金鑰必須相符，再檢查聊天室是否啟用
func ResolveIdentity(ctx context.Context, lookup RoomLookup, roomID string, creds Credentials) (Identity, error) {
	if !creds.AdminSession && creds.AccessKey == "" {
		return Identity{}, models.ErrUnauthorized
	}

	if creds.AdminSession {
		if _, err := lookup.FindByID(ctx, roomID); err != nil {
			return Identity{}, err
		}
		if creds.AccessKey != "" {
			log.Printf("[auth] room %s: request carried both an admin session and an access key; using admin session", roomID)
		}
		return Identity{Role: models.RoleAdmin, UserID: AdminUserID}, nil
	}

	room, err := lookup.ValidateToken(ctx, roomID, creds.AccessKey)
	if err != nil {
		return Identity{}, err
	}
	if !room.IsActive {
		return Identity{}, models.ErrRoomInactive
	}
	return Identity{Role: models.RoleClient, UserID: ClientUserID(creds.AccessKey)}, nil
}
