package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv" // 引入這個庫來讀取 .env 檔案
)

// Config 結構體用於儲存應用程式的配置
type Config struct {
	Port       string
	MongoDBURI string
	DBName     string
	Store      string // mongo 或 memory

	JWTSecret         string
	GrantTTL          time.Duration // 頻道授權簽章的有效時間
	AdminEmail        string
	AdminPasswordHash string // bcrypt 雜湊

	RealtimeBroker string // local、redis 或 nats
	RedisAddr      string
	NATSURL        string

	CORSOrigins []string
	TypingIdle  time.Duration
}

// LoadConfig 載入配置，優先從環境變數讀取，其次從 .env 檔案讀取
func LoadConfig() *Config {
	// 嘗試載入 .env 檔案，如果不存在也不會報錯
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		MongoDBURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:            getEnv("DB_NAME", "secure_chat_db"),
		Store:             strings.ToLower(getEnv("STORE", "mongo")),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		GrantTTL:          getDuration("GRANT_TTL", 5*time.Minute),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		RealtimeBroker:    strings.ToLower(getEnv("REALTIME_BROKER", "local")),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		TypingIdle:        getDuration("TYPING_IDLE", 2*time.Second),
	}

	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		log.Println("Admin credentials not configured; /admin/login will reject every attempt.")
	}
	return cfg
}

// ErrMissingJWTSecret 沒有 JWT_SECRET 時伺服器不能啟動
var ErrMissingJWTSecret = errors.New("JWT_SECRET is not set; refusing to sign admin sessions and channel grants with an empty key")

// Validate 檢查啟動前必須具備的設定
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// getEnv 輔助函數，用於從環境變數獲取值，如果不存在則使用預設值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getDuration 解析像 "2s"、"5m" 的時間設定，格式錯誤時使用預設值
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		log.Printf("Invalid %s value %q, using default %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
