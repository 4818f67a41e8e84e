package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"securechat/backend/auth"
	"securechat/backend/models"
	"securechat/backend/rooms"

	"github.com/gorilla/mux"
)

// ListRooms 列出所有聊天室（管理員）
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	list, err := h.rooms.List(r.Context())
	if err != nil {
		writeError(w, err, "Failed to fetch rooms")
		return
	}
	if list == nil {
		list = []models.ChatRoom{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": list})
}

// CreateRoom 建立聊天室（管理員），回傳的資料包含存取金鑰
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req rooms.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	room, err := h.rooms.Create(r.Context(), req)
	if err != nil {
		writeError(w, err, "Failed to create room")
		return
	}

	log.Printf("Chat room created: %s", room.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"room": room})
}

// GetRoom 管理員取得完整資料；客戶以存取金鑰取得不含金鑰的資料
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	identity, err := auth.ResolveIdentity(r.Context(), h.rooms, roomID, credentials(r))
	if err != nil {
		writeError(w, err, "Failed to fetch room")
		return
	}

	room, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		writeError(w, err, "Failed to fetch room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": roomFor(identity, room), "role": identity.Role})
}

// UpdateRoom 依角色更新：管理員可改標題、描述、管理員筆記與啟用狀態，客戶只能改客戶筆記
func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var patch models.RoomPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	identity, err := auth.ResolveIdentity(r.Context(), h.rooms, roomID, credentials(r))
	if err != nil {
		writeError(w, err, "Failed to update room")
		return
	}

	allowed := patch.RestrictTo(identity.Role)
	room, err := h.rooms.Update(r.Context(), roomID, allowed, identity.Role)
	if err != nil {
		writeError(w, err, "Failed to update room")
		return
	}

	if allowed.AdminNote != nil || allowed.ClientNote != nil {
		h.publishNotes(r.Context(), room, identity.Role)
	}
	if allowed.IsActive != nil && !*allowed.IsActive {
		h.revokeClients(r.Context(), roomID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"room": roomFor(identity, room)})
}

// DeleteRoom 刪除聊天室（管理員），並中斷客戶仍在線的訂閱
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	if err := h.rooms.Delete(r.Context(), roomID); err != nil {
		writeError(w, err, "Failed to delete room")
		return
	}
	h.revokeClients(r.Context(), roomID)

	log.Printf("Chat room deleted: %s", roomID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// publishNotes 筆記更新後通知頻道上的雙方；通知失敗不影響已完成的更新
func (h *Handler) publishNotes(ctx context.Context, room *models.ChatRoom, by models.Role) {
	update := models.NoteUpdate{AdminNote: room.AdminNote, ClientNote: room.ClientNote, UpdatedBy: by}
	if err := h.hub.Publish(ctx, auth.ChannelName(room.ID), models.EventNoteUpdated, update); err != nil {
		log.Printf("Failed to publish note update for room %s: %v", room.ID, err)
	}
}

func (h *Handler) revokeClients(ctx context.Context, roomID string) {
	if err := h.hub.Revoke(ctx, auth.ChannelName(roomID), models.RoleClient); err != nil {
		log.Printf("Failed to revoke client subscriptions for room %s: %v", roomID, err)
	}
}

// roomFor 客戶看不到存取金鑰
func roomFor(identity auth.Identity, room *models.ChatRoom) any {
	if identity.Role == models.RoleAdmin {
		return room
	}
	return room.ClientView()
}
