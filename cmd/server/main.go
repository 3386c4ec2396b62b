package main

import (
	"context"
	"log"
	"time"

	"campushub/internal/config"
	"campushub/internal/db"
	"campushub/internal/handlers"
	"campushub/internal/pubsub"
	"campushub/internal/router"
	"campushub/internal/services"
	"campushub/internal/storage"
	"campushub/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	utils.SetMarkdownCacheSize(cfg.MarkdownCache)

	// Initialize Database
	db.Init(cfg.DatabaseURL, gin.Mode() == gin.DebugMode)

	files, err := storage.NewLocalStorage(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		log.Fatalf("Failed to prepare upload dir: %v", err)
	}

	opts := []services.Option{services.WithMaxVoteRetries(cfg.VoteRetries)}
	var live handlers.Subscriber
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := pubsub.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("Redis connect failed: %v", err)
		}
		defer rdb.Close()
		pub := pubsub.NewRedisPublisher(rdb)
		opts = append(opts, services.WithPublisher(pub))
		live = pub
		log.Println("Live updates enabled")
	} else {
		log.Println("REDIS_URL not set, live updates disabled")
	}

	svc := services.NewMessageService(db.NewMessageStore(db.DB), files, opts...)

	// Initialize Gin
	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("campushub_session", store))

	router.RegisterRoutes(r, router.Deps{
		Service:        svc,
		Live:           live,
		UploadDir:      files.Root(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	log.Printf("CampusHub server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
