package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"securechat/backend/auth"
	"securechat/backend/config"
	"securechat/backend/database"
	"securechat/backend/handlers"
	"securechat/backend/models"
	"securechat/backend/realtime"
	"securechat/backend/relay"
	"securechat/backend/rooms"

	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors" // 引入 CORS 庫
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore := openStore(ctx, cfg)
	defer closeStore()

	broker, presence, closeBroker := openRealtime(ctx, cfg)
	defer closeBroker()

	directory := rooms.NewDirectory(repo)
	signer := auth.NewGrantSigner(cfg.JWTSecret, cfg.GrantTTL)
	authorizer := auth.NewChannelAuthorizer(directory, signer)
	hub := realtime.NewHub(signer, authorizer, broker, presence)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Fatalf("Realtime hub stopped: %v", err)
		}
	}()

	h := handlers.New(
		directory,
		authorizer,
		relay.New(directory, hub),
		hub,
		handlers.AdminCredentials{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash},
		cfg.JWTSecret,
	)

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	// 設置 CORS 中介軟體
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", models.AccessKeyHeader},
		AllowCredentials: true,
	})

	// 將 CORS 中介軟體應用到你的路由上
	handler := c.Handler(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s (store=%s, broker=%s)", serverAddr, cfg.Store, cfg.RealtimeBroker)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// 如果錯誤不是因為主動關閉伺服器，就記錄錯誤並結束程式
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	//當按下 Ctrl+C，程式會收到 SIGINT
	<-ctx.Done()
	log.Println("Received shutdown signal, shutting down server...")

	//最多等30秒關閉，避免請求中斷
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	hub.Wait()

	log.Println("Server exited gracefully.")
}

// openStore 依 STORE 選擇 MongoDB 或記憶體儲存
func openStore(ctx context.Context, cfg *config.Config) (database.RoomRepository, func()) {
	if cfg.Store == "memory" {
		log.Println("Using in-memory room store; rooms are lost on restart.")
		return database.NewMemoryRoomRepository(), func() {}
	}

	client, err := database.ConnectMongoDB(ctx, cfg.MongoDBURI)
	if err != nil {
		log.Fatalf("Could not connect to MongoDB: %v", err)
	}
	repo, err := database.NewMongoRoomRepository(ctx, client.Database(cfg.DBName))
	if err != nil {
		database.DisconnectMongoDB(client)
		log.Fatalf("Could not prepare room collection: %v", err)
	}
	return repo, func() { database.DisconnectMongoDB(client) }
}

// openRealtime 依 REALTIME_BROKER 選擇事件分送方式。
// 多個實例時 presence 也必須共享，因此 redis 模式同時使用 Redis 記錄成員。
func openRealtime(ctx context.Context, cfg *config.Config) (realtime.Broker, realtime.PresenceStore, func()) {
	switch cfg.RealtimeBroker {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Could not connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		log.Printf("Realtime events and presence shared through Redis at %s", cfg.RedisAddr)
		return realtime.NewRedisBroker(client, ""), realtime.NewRedisPresence(client, ""), func() { client.Close() }

	case "nats":
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("securechat-backend"))
		if err != nil {
			log.Fatalf("Could not connect to NATS at %s: %v", cfg.NATSURL, err)
		}
		var presence realtime.PresenceStore = realtime.NewMemoryPresence()
		closeAll := func() { conn.Drain() }
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := client.Ping(ctx).Err(); err == nil {
				presence = realtime.NewRedisPresence(client, "")
				closeAll = func() {
					conn.Drain()
					client.Close()
				}
			} else {
				log.Printf("Redis unavailable (%v); presence is tracked per instance", err)
				client.Close()
			}
		}
		log.Printf("Realtime events distributed through NATS at %s", cfg.NATSURL)
		return realtime.NewNATSBroker(conn, ""), presence, closeAll

	default:
		return realtime.NewLocalBroker(), realtime.NewMemoryPresence(), func() {}
	}
}
