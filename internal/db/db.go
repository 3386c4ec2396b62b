package db

import (
	"log"

	"campushub/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the postgres connection, migrates the schema and seeds forums.
func Init(dsn string, debug bool) {
	cfg := &gorm.Config{}
	if !debug {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	// Auto Migrate
	err = DB.AutoMigrate(
		&models.Forum{},
		&models.Message{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	// Seed initial forums
	seedForums()
}

func seedForums() {
	// 检查是否已有论坛数据
	var count int64
	DB.Model(&models.Forum{}).Count(&count)
	if count > 0 {
		log.Println("Forums already seeded, skipping")
		return
	}

	forums := []models.Forum{
		{Name: "General", Description: "Campus-wide announcements and discussion"},
		{Name: "Clubs", Description: "Club activities, recruitment and meetups"},
		{Name: "Events", Description: "Upcoming events, schedules and polls"},
		{Name: "Projects", Description: "Project showcases and collaboration"},
	}

	for _, forum := range forums {
		if err := DB.Create(&forum).Error; err != nil {
			log.Printf("Failed to create forum %s: %v", forum.Name, err)
		}
	}
	log.Println("Initial forums created successfully")
}
