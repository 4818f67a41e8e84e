package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"securechat/backend/utils"

	"golang.org/x/crypto/bcrypt" // 用於密碼哈希
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLogin 處理管理員登入，成功時回傳 session token
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("JSON decode error: %v", err)
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	// 基本的輸入驗證
	if req.Email == "" || req.Password == "" {
		sendJSONError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	if h.admin.Email == "" || h.admin.PasswordHash == "" {
		sendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(req.Email)), []byte(strings.ToLower(h.admin.Email))) == 1
	// email 不符時仍然比對密碼
	passwordErr := bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(req.Password))
	if !emailOK || passwordErr != nil {
		sendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := utils.GenerateJWT(h.admin.Email, h.jwtSecret, utils.AdminSessionTTL)
	if err != nil {
		log.Printf("Error generating admin token: %v", err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// 登入成功
	log.Printf("Admin logged in: %s", h.admin.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"token":   token,
	})
}

// AuthorizeChannel 處理即時頻道的訂閱授權（表單欄位 socket_id、channel_name）
func (h *Handler) AuthorizeChannel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendJSONError(w, "Invalid form payload", http.StatusBadRequest)
		return
	}
	socketID := r.PostForm.Get("socket_id")
	channel := r.PostForm.Get("channel_name")
	if socketID == "" || channel == "" {
		sendJSONError(w, "Missing socket_id or channel_name", http.StatusBadRequest)
		return
	}

	grant, identity, err := h.authorizer.Authorize(r.Context(), socketID, channel, credentials(r))
	if err != nil {
		writeError(w, err, "Authentication failed")
		return
	}

	log.Printf("Authorized %s for %s as %s", socketID, channel, identity.Role)
	writeJSON(w, http.StatusOK, grant)
}
