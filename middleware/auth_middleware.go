package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"securechat/backend/models"
	"securechat/backend/utils"
)

// AdminSession 驗證 Authorization: Bearer <token>，有效時把管理員 session 放入 context。
// 沒有帶 token 的請求照常放行，是否需要管理員由後面的 handler 決定。
func AdminSession(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Authorization: Bearer <token>
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeUnauthorized(w, "Invalid Authorization header format")
				return
			}

			claims, err := utils.ParseAdminToken(parts[1], jwtSecret)
			if err != nil {
				// token 無效就當作沒有 session，讓存取金鑰仍然可以使用
				log.Printf("Invalid admin session token: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := utils.WithAdmin(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin 沒有管理員 session 時回傳 401
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsAdmin(r.Context()) {
			writeUnauthorized(w, "Admin session required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: message}); err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}
