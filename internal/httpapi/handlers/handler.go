package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/personaverse/persona-chat/internal/character"
	"github.com/personaverse/persona-chat/internal/chat"
	"github.com/personaverse/persona-chat/internal/config"
)

// TokenStore is what logout needs from the revocation store.
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// JobPublisher enqueues asynchronous chat jobs.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	DB           *gorm.DB
	Cfg          config.Config
	Log          *zap.Logger
	CharacterSvc *character.Service
	ChatSvc      *chat.Service

	// Optional collaborators; nil disables the feature.
	Tokens TokenStore
	Jobs   JobPublisher
}

func NewHandler(db *gorm.DB, cfg config.Config, log *zap.Logger, chars *character.Service, chatSvc *chat.Service, tokens TokenStore, jobs JobPublisher) *Handler {
	return &Handler{
		DB:           db,
		Cfg:          cfg,
		Log:          log,
		CharacterSvc: chars,
		ChatSvc:      chatSvc,
		Tokens:       tokens,
		Jobs:         jobs,
	}
}
