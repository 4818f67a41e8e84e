package realtime

import (
	"context"
	"sort"
	"sync"

	"securechat/backend/models"
)

// PresenceStore 以 user_id 為單位記錄頻道成員。
// 同一個 user_id 可以有多條連線（例如多個分頁），只有第一條加入與最後一條離開會回報。
type PresenceStore interface {
	// Add 回傳 first=true 表示這是該 user_id 的第一條連線
	Add(ctx context.Context, channel string, member models.PresenceMember) (first bool, err error)
	// Remove 回傳 last=true 表示該 user_id 已沒有任何連線
	Remove(ctx context.Context, channel string, member models.PresenceMember) (last bool, err error)
	Members(ctx context.Context, channel string) ([]models.PresenceMember, error)
}

type presenceEntry struct {
	member models.PresenceMember
	count  int
}

// MemoryPresence 單一實例使用的 PresenceStore
type MemoryPresence struct {
	mu       sync.Mutex
	channels map[string]map[string]*presenceEntry
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{channels: make(map[string]map[string]*presenceEntry)}
}

func (p *MemoryPresence) Add(_ context.Context, channel string, member models.PresenceMember) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, ok := p.channels[channel]
	if !ok {
		entries = make(map[string]*presenceEntry)
		p.channels[channel] = entries
	}
	entry, ok := entries[member.UserID]
	if !ok {
		entries[member.UserID] = &presenceEntry{member: member, count: 1}
		return true, nil
	}
	entry.count++
	entry.member = member
	return false, nil
}

func (p *MemoryPresence) Remove(_ context.Context, channel string, member models.PresenceMember) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, ok := p.channels[channel]
	if !ok {
		return false, nil
	}
	entry, ok := entries[member.UserID]
	if !ok {
		return false, nil
	}
	entry.count--
	if entry.count > 0 {
		return false, nil
	}
	delete(entries, member.UserID)
	if len(entries) == 0 {
		delete(p.channels, channel)
	}
	return true, nil
}

func (p *MemoryPresence) Members(_ context.Context, channel string) ([]models.PresenceMember, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members := make([]models.PresenceMember, 0, len(p.channels[channel]))
	for _, entry := range p.channels[channel] {
		members = append(members, entry.member)
	}
	sortMembers(members)
	return members, nil
}

func sortMembers(members []models.PresenceMember) {
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
}
