package auth

import (
	"strings"

	"securechat/backend/models"
)

// ChannelPrefix 是聊天室 presence 頻道的固定前綴
const ChannelPrefix = "presence-chat-"

// ChannelName 由聊天室 ID 組出頻道名稱，不做額外編碼
func ChannelName(roomID string) string {
	return ChannelPrefix + roomID
}

// RoomIDFromChannel 從頻道名稱取出聊天室 ID，格式不符時回傳 ErrInvalidChannel
func RoomIDFromChannel(channel string) (string, error) {
	roomID, ok := strings.CutPrefix(channel, ChannelPrefix)
	if !ok || roomID == "" {
		return "", models.ErrInvalidChannel
	}
	return roomID, nil
}
