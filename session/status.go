package session

import (
	"errors"
	"fmt"

	"securechat/backend/models"
)

// State 是 Session 的連線狀態
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// 顯示給使用者的訊息
const (
	MsgAccessDenied       = "Access denied: this link is invalid or you are not signed in."
	MsgRoomDisabled       = "This chat room has been disabled."
	MsgRoomNotFound       = "Chat room not found."
	MsgSendFailed         = "Failed to send message. Please try again."
	MsgConnectionLost     = "Connection lost."
	MsgCounterpartOffline = "The other participant is offline."
	MsgRoleMismatch       = "Signed in with a different role than requested. Your admin session may have expired."
)

var (
	ErrNotConnected = errors.New("session is not connected")
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrRoleMismatch 授權回傳的角色與 Config.Role 不同
	ErrRoleMismatch = fmt.Errorf("%w: granted role differs from the expected role", models.ErrUnauthorized)
)

// describe 把錯誤轉成使用者看得懂的訊息
func describe(err error) string {
	switch {
	case errors.Is(err, ErrRoleMismatch):
		return MsgRoleMismatch
	case errors.Is(err, models.ErrRoomInactive):
		return MsgRoomDisabled
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrValidation):
		return MsgAccessDenied
	case errors.Is(err, models.ErrNotFound):
		return MsgRoomNotFound
	default:
		return MsgConnectionLost
	}
}
