package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"securechat/backend/models"
)

// MemoryRoomRepository 是記憶體版本，用於測試與 STORE=memory 的本機執行
type MemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]models.ChatRoom
}

func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{rooms: make(map[string]models.ChatRoom)}
}

func (r *MemoryRoomRepository) Insert(_ context.Context, room *models.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = *room
	return nil
}

func (r *MemoryRoomRepository) List(_ context.Context) ([]models.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]models.ChatRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *MemoryRoomRepository) FindByID(_ context.Context, id string) (*models.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return &room, nil
}

func (r *MemoryRoomRepository) Update(_ context.Context, id string, patch models.RoomPatch) (*models.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if patch.Title != nil {
		room.Title = *patch.Title
	}
	if patch.Description != nil {
		room.Description = *patch.Description
	}
	if patch.AdminNote != nil {
		room.AdminNote = *patch.AdminNote
	}
	if patch.ClientNote != nil {
		room.ClientNote = *patch.ClientNote
	}
	if patch.IsActive != nil {
		room.IsActive = *patch.IsActive
	}
	room.UpdatedAt = time.Now().UTC()
	r.rooms[id] = room
	return &room, nil
}

func (r *MemoryRoomRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return models.ErrRoomNotFound
	}
	delete(r.rooms, id)
	return nil
}

// Len 回傳目前的聊天室數量
func (r *MemoryRoomRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
