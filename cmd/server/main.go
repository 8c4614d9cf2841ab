package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/personaverse/persona-chat/internal/ai"
	"github.com/personaverse/persona-chat/internal/character"
	"github.com/personaverse/persona-chat/internal/chat"
	"github.com/personaverse/persona-chat/internal/config"
	"github.com/personaverse/persona-chat/internal/db"
	"github.com/personaverse/persona-chat/internal/httpapi"
	"github.com/personaverse/persona-chat/internal/httpapi/handlers"
	"github.com/personaverse/persona-chat/internal/httpapi/middleware"
	"github.com/personaverse/persona-chat/internal/store/rabbitmq"
	"github.com/personaverse/persona-chat/internal/store/redisstore"
)

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("openai", func() (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	})
	reg.Register("ollama", func() (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	})
	return reg
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

	provider, err := newRegistry(cfg).Get(cfg.AIProvider)
	if err != nil {
		log.Fatal("ai provider setup failed", zap.Error(err))
	}
	retried := ai.NewRetrier(provider, cfg.AIMaxAttempts, cfg.AIRetryBaseDelay)

	charSvc := character.NewService(character.NewRepo(gdb))
	chatSvc := chat.NewService(chat.NewRepo(gdb), charSvc, retried, cfg.ChatContextWindowSize)

	var tokens *redisstore.Store
	var revoker middleware.TokenRevoker
	var tokenStore handlers.TokenStore
	if cfg.RedisAddr != "" {
		tokens = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer tokens.Close()
		revoker = tokens
		tokenStore = tokens
	}

	var jobs handlers.JobPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Warn("rabbitmq unavailable, async send disabled", zap.Error(err))
	} else {
		defer pub.Close()
		jobs = pub
	}

	h := handlers.NewHandler(gdb, cfg, log, charSvc, chatSvc, tokenStore, jobs)
	router := httpapi.NewRouter(h, cfg, log, revoker)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("provider", cfg.AIProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
