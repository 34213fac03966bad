package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"brandlink/backend/internal/api/handler"
	"brandlink/backend/internal/config"
	"brandlink/backend/internal/localization"
	"brandlink/backend/internal/models"
	"brandlink/backend/internal/realtime"
	"brandlink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDatabase(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.RoomRecord{},
		&models.ArchivedMessage{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database connection established, migrations complete.")
	return db
}

func main() {
	log.Println("Starting BrandLink chat backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	// Durable side: user directory + room/message archive.
	db := setupDatabase(cfg)
	store := storage.NewService(db)

	// Realtime side: in-process store, mirrored to Postgres and warm-started
	// from it.
	rt := realtime.NewMemoryStore()
	archiver := storage.NewArchiver(rt, store)
	if err := archiver.Seed(config.MessageWindowLimit); err != nil {
		log.Fatalf("Failed to seed realtime store from archive: %v", err)
	}
	archiver.Run()

	// Optional cross-instance replication over Redis pub/sub.
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("Failed to connect Redis: %v", err)
		}
		bridge := realtime.NewBridge(rt, rdb, config.ReplicationChannel)
		bridge.Run(context.Background())
		log.Println("Replication bridge connected to Redis.")
	}

	loc := localization.New()
	if cfg.LocalesDir != "" {
		if err := loc.LoadDir(cfg.LocalesDir); err != nil {
			log.Fatalf("Failed to load locales: %v", err)
		}
	}

	r := gin.Default()
	h := handler.NewHandler(rt, store, loc, cfg)

	r.POST("/session", h.CreateSession)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.RequireAuth)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:key/messages", h.RoomMessages)

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatal(server.ListenAndServe())
}
