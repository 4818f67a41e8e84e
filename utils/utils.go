package utils

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey 避免與其他套件的 context key 衝突
type contextKey string

// AdminKey 是儲存在 context 中的管理員 session 的鍵
const AdminKey contextKey = "admin"

// AdminSessionTTL 管理員登入後 token 的有效時間
const AdminSessionTTL = 24 * time.Hour

// ErrEmptySecret 表示沒有設定簽章金鑰，此時不簽發也不接受任何 token
var ErrEmptySecret = errors.New("jwt secret is empty")

// AdminClaims 是管理員 session token 的聲明
type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// WithAdmin 將管理員 session 放入 context
func WithAdmin(ctx context.Context, claims *AdminClaims) context.Context {
	return context.WithValue(ctx, AdminKey, claims)
}

// AdminFromContext 從 context 中取出管理員 session
func AdminFromContext(ctx context.Context) (*AdminClaims, bool) {
	claims, ok := ctx.Value(AdminKey).(*AdminClaims)
	return claims, ok && claims != nil
}

// IsAdmin 判斷目前請求是否帶有有效的管理員 session
func IsAdmin(ctx context.Context) bool {
	_, ok := AdminFromContext(ctx)
	return ok
}

// GenerateJWT 為管理員生成 JWT Token
func GenerateJWT(email string, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := AdminClaims{
		Email: email,
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.New("failed to sign token")
	}
	return tokenString, nil
}

// ParseAdminToken 驗證管理員 JWT 並回傳聲明
func ParseAdminToken(tokenString string, secret string) (*AdminClaims, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Role != "admin" {
		return nil, errors.New("token is not an admin session")
	}
	return claims, nil
}
