package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"securechat/backend/auth"
	"securechat/backend/middleware"
	"securechat/backend/models"
	"securechat/backend/relay"
	"securechat/backend/rooms"
	"securechat/backend/utils"

	"github.com/gorilla/mux"
)

// RealtimeHub 是 handler 需要的即時頻道功能
type RealtimeHub interface {
	Publish(ctx context.Context, channel, event string, data any) error
	Revoke(ctx context.Context, channel string, role models.Role) error
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// AdminCredentials 是唯一管理員帳號
type AdminCredentials struct {
	Email        string
	PasswordHash string // bcrypt
}

// Handler 持有所有 HTTP 端點的相依
type Handler struct {
	rooms      *rooms.Directory
	authorizer *auth.ChannelAuthorizer
	relay      *relay.Relay
	hub        RealtimeHub
	admin      AdminCredentials
	jwtSecret  string
}

func New(directory *rooms.Directory, authorizer *auth.ChannelAuthorizer, messages *relay.Relay, hub RealtimeHub, admin AdminCredentials, jwtSecret string) *Handler {
	return &Handler{
		rooms:      directory,
		authorizer: authorizer,
		relay:      messages,
		hub:        hub,
		admin:      admin,
		jwtSecret:  jwtSecret,
	}
}

// RegisterRoutes 註冊所有路由
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Use(middleware.AdminSession(h.jwtSecret))

	// 健康檢查路由
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running! connections=%d", h.hub.ClientCount())
	}).Methods("GET")

	router.HandleFunc("/admin/login", h.AdminLogin).Methods("POST")

	router.Handle("/chat/rooms", middleware.RequireAdmin(http.HandlerFunc(h.ListRooms))).Methods("GET")
	router.Handle("/chat/rooms", middleware.RequireAdmin(http.HandlerFunc(h.CreateRoom))).Methods("POST")
	router.HandleFunc("/chat/rooms/{roomId}", h.GetRoom).Methods("GET")
	router.HandleFunc("/chat/rooms/{roomId}", h.UpdateRoom).Methods("PATCH")
	router.Handle("/chat/rooms/{roomId}", middleware.RequireAdmin(http.HandlerFunc(h.DeleteRoom))).Methods("DELETE")

	router.HandleFunc("/chat/message", h.SendMessage).Methods("POST")

	router.HandleFunc("/realtime/auth", h.AuthorizeChannel).Methods("POST")
	router.HandleFunc("/realtime", h.hub.ServeWS).Methods("GET")
}

// sendJSONError 統一發送 JSON 格式錯誤響應
func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: message}); err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeError 依錯誤分類對應狀態碼。
// ErrRoomInactive 也是 ErrUnauthorized，必須先判斷。
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrRoomInactive):
		sendJSONError(w, "This chat room is no longer active", http.StatusForbidden)
	case errors.Is(err, models.ErrUnauthorized):
		sendJSONError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, models.ErrValidation):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		sendJSONError(w, "Room not found", http.StatusNotFound)
	case errors.Is(err, models.ErrTransport):
		log.Printf("%s: %v", fallback, err)
		sendJSONError(w, fallback, http.StatusBadGateway)
	default:
		log.Printf("%s: %v", fallback, err)
		sendJSONError(w, fallback, http.StatusInternalServerError)
	}
}

// credentials 從請求取出憑證：管理員 session 來自 middleware，
// 存取金鑰依序取自 X-Access-Key header 與 ?key= 查詢參數
func credentials(r *http.Request) auth.Credentials {
	key := r.Header.Get(models.AccessKeyHeader)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	return auth.Credentials{
		AdminSession: utils.IsAdmin(r.Context()),
		AccessKey:    key,
	}
}
