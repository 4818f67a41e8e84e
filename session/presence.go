package session

import "securechat/backend/models"

// presenceTracker 只關心「對方是否在線、是否正在輸入」
type presenceTracker struct {
	me     models.Role
	online bool
	typing bool
}

func newPresenceTracker(me models.Role) *presenceTracker {
	return &presenceTracker{me: me}
}

// reset 依訂閱成功時的完整成員列表計算對方是否在線
func (p *presenceTracker) reset(members []models.PresenceMember) {
	p.online = false
	for _, m := range members {
		if m.UserInfo.Role != p.me {
			p.online = true
			break
		}
	}
	if !p.online {
		p.typing = false
	}
}

// added 回傳 true 表示對方剛加入，需要提示
func (p *presenceTracker) added(member models.PresenceMember) bool {
	if member.UserInfo.Role == p.me {
		return false
	}
	p.online = true
	return true
}

// removed 對方離開時同時清除輸入中狀態
func (p *presenceTracker) removed(member models.PresenceMember) {
	if member.UserInfo.Role == p.me {
		return
	}
	p.online = false
	p.typing = false
}

// typingSignal 忽略自己角色的輸入事件
func (p *presenceTracker) typingSignal(signal models.TypingSignal, start bool) {
	if signal.Role == p.me {
		return
	}
	p.typing = start
}
