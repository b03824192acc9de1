package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/config"
	"github.com/Perrohpta23/chatbot/internal/database"
	"github.com/Perrohpta23/chatbot/internal/handlers"
	"github.com/Perrohpta23/chatbot/internal/middleware"
	"github.com/Perrohpta23/chatbot/internal/repository"
	"github.com/Perrohpta23/chatbot/internal/router"
	"github.com/Perrohpta23/chatbot/internal/services"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := database.RunMigrations(pool, "migrations"); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	userRepo := repository.NewUserRepo(pool)
	conversationRepo := repository.NewConversationRepo(pool)

	llmClient, err := services.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMModel)
	if err != nil {
		logger.Fatal("llm client initialization failed", zap.Error(err))
	}

	llmTimeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	chatService := services.NewChatService(conversationRepo, llmClient, logger, cfg.HistoryWindow, llmTimeout)

	identity := middleware.NewIdentity(userRepo, cfg.CookieSecure, logger)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, cfg.MaxBodyBytes, logger)
	chatHandler := handlers.NewChatHandler(chatService, cfg.MaxBodyBytes)

	r := router.New(identity, conversationHandler, chatHandler, cfg.AllowedOrigins, logger)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// A chat turn holds the connection for the whole upstream call.
		WriteTimeout: llmTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Info("server ready",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("model", cfg.LLMModel))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
