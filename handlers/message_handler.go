package handlers

import (
	"encoding/json"
	"net/http"

	"securechat/backend/models"
)

// SendMessageRequest 是送出訊息的請求體；message 為舊版前端使用的欄位名稱
type SendMessageRequest struct {
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	Message   string `json:"message,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
}

type sendMessageResponse struct {
	Success bool               `json:"success"`
	Message models.ChatMessage `json:"message"`
}

// SendMessage 驗證後把訊息發布到頻道，訊息不會寫入資料庫
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.RoomID == "" {
		sendJSONError(w, "Room ID is required", http.StatusBadRequest)
		return
	}
	content := req.Content
	if content == "" {
		content = req.Message
	}

	creds := credentials(r)
	if creds.AccessKey == "" {
		creds.AccessKey = req.AccessKey
	}

	msg, err := h.relay.Send(r.Context(), req.RoomID, content, creds)
	if err != nil {
		writeError(w, err, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Success: true, Message: msg})
}
