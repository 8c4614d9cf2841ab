package main

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/personaverse/persona-chat/internal/auth"
	"github.com/personaverse/persona-chat/internal/character"
	"github.com/personaverse/persona-chat/internal/config"
	"github.com/personaverse/persona-chat/internal/db"
	"github.com/personaverse/persona-chat/internal/models"
)

type seedCharacter struct {
	name      string
	prompt    string
	thumbnail string
}

var defaultCharacters = []seedCharacter{
	{
		name: "Friendly Companion",
		prompt: "You are a warm and friendly companion. Listen carefully to what the " +
			"user shares, empathize with them, and offer gentle, supportive advice. " +
			"Always keep a warm and approachable tone.",
		thumbnail: "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgeG1sbnM9Imh0dHA6Ly93d3cudzMub3JnLzIwMDAvc3ZnIj48cmVjdCB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgZmlsbD0iIzY2NjZmZiIvPjwvc3ZnPg==",
	},
	{
		name: "Professional Counselor",
		prompt: "You are an experienced counselor. Analyze the user's concerns in " +
			"depth and provide structured, professional advice. Stay objective and " +
			"considered at all times.",
		thumbnail: "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgeG1sbnM9Imh0dHA6Ly93d3cudzMub3JnLzIwMDAvc3ZnIj48cmVjdCB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgZmlsbD0iIzRhOTBhNSIvPjwvc3ZnPg==",
	},
	{
		name: "Cheerful Comedian",
		prompt: "You are a comedian with a sharp sense of humor. Lift the user's mood " +
			"with witty jokes and playful banter, and keep the conversation light and " +
			"fun. Radiate positive energy.",
		thumbnail: "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgeG1sbnM9Imh0dHA6Ly93d3cudzMub3JnLzIwMDAvc3ZnIj48cmVjdCB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgZmlsbD0iI2ZmODg0ZCIvPjwvc3ZnPg==",
	},
}

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal("database migrate failed", zap.Error(err))
	}

	if err := seedDemoUser(gdb); err != nil {
		log.Fatal("seed user failed", zap.Error(err))
	}
	log.Info("demo user ready", zap.String("username", "demo"))

	created, err := seedDefaultCharacters(gdb)
	if err != nil {
		log.Fatal("seed characters failed", zap.Error(err))
	}
	log.Info("default characters ready", zap.Int("created", created))
}

func seedDemoUser(gdb *gorm.DB) error {
	var existing models.User
	err := gdb.Where("username = ?", "demo").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPassword("password123")
	if err != nil {
		return err
	}
	return gdb.Create(&models.User{Username: "demo", PasswordHash: hash}).Error
}

func seedDefaultCharacters(gdb *gorm.DB) (int, error) {
	created := 0
	for _, sc := range defaultCharacters {
		var existing character.Character
		err := gdb.Where("name = ? AND is_default = ?", sc.name, true).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		thumb := sc.thumbnail
		ch := character.Character{
			ID:        uuid.NewString(),
			Name:      sc.name,
			Prompt:    sc.prompt,
			Thumbnail: &thumb,
			IsDefault: true,
		}
		if err := gdb.Create(&ch).Error; err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
