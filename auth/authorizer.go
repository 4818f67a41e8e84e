package auth

import (
	"context"
	"fmt"

	"securechat/backend/models"
)

// ChannelAuthorizer 驗證連線是否能加入某聊天室的頻道
type ChannelAuthorizer struct {
	rooms  RoomLookup
	signer *GrantSigner
}

func NewChannelAuthorizer(rooms RoomLookup, signer *GrantSigner) *ChannelAuthorizer {
	return &ChannelAuthorizer{rooms: rooms, signer: signer}
}

// Authorize 成功時回傳簽章；失敗時不會產生任何狀態變更
func (a *ChannelAuthorizer) Authorize(ctx context.Context, socketID, channel string, creds Credentials) (models.ChannelGrant, Identity, error) {
	if socketID == "" {
		return models.ChannelGrant{}, Identity{}, fmt.Errorf("%w: socket_id is required", models.ErrValidation)
	}
	roomID, err := RoomIDFromChannel(channel)
	if err != nil {
		return models.ChannelGrant{}, Identity{}, err
	}

	identity, err := ResolveIdentity(ctx, a.rooms, roomID, creds)
	if err != nil {
		return models.ChannelGrant{}, Identity{}, err
	}

	grant, err := a.signer.Sign(socketID, channel, identity.Member())
	if err != nil {
		return models.ChannelGrant{}, Identity{}, err
	}
	return grant, identity, nil
}

// Admit 在 WebSocket 訂閱時重新讀取聊天室：已刪除的聊天室拒絕所有人，停用的聊天室只允許管理員。
// 授權簽章在有效期內可以重送，撤銷是否生效取決於這裡。
func (a *ChannelAuthorizer) Admit(ctx context.Context, channel string, member models.PresenceMember) error {
	roomID, err := RoomIDFromChannel(channel)
	if err != nil {
		return err
	}
	room, err := a.rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if member.UserInfo.Role != models.RoleAdmin && !room.IsActive {
		return models.ErrRoomInactive
	}
	return nil
}
