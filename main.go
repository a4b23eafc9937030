package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raushankrgupta/virtual-tryon-studio/api"
	"github.com/raushankrgupta/virtual-tryon-studio/config"
	"github.com/raushankrgupta/virtual-tryon-studio/session"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chatbot
	gemini, err := utils.NewGeminiClient(ctx, config.GeminiAPIKey, config.GeminiModel)
	if err != nil {
		logger.Fatal("failed to create Gemini client", zap.Error(err))
	}
	defer gemini.Close()

	// Garment fitting space
	gradio := utils.NewGradioClient(config.TryOnSpaceURL, config.HFToken, &http.Client{})
	fitter := utils.NewTryOnClient(gradio, config.TryOnAPIName)

	secret := []byte(config.SessionSecret)
	if len(secret) == 0 {
		// sessions will not survive a restart
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatal("failed to generate session secret", zap.Error(err))
		}
	}

	sessions := session.NewStore(config.SessionTTL)
	go sessions.RunJanitor(ctx, 10*time.Minute)

	var history utils.HistoryStore
	if config.MongoURI != "" {
		mongoHistory, err := utils.ConnectMongo(config.MongoURI, config.DBName)
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoHistory.Disconnect(context.Background())
		history = mongoHistory
		logger.Info("try-on history enabled", zap.String("db", config.DBName))
	}

	var archive utils.ResultArchiver
	if config.AWSBucketName != "" {
		s3Archive, err := utils.InitS3(ctx, config.AWSRegion, config.AWSBucketName)
		if err != nil {
			logger.Fatal("failed to initialize S3", zap.Error(err))
		}
		archive = s3Archive
		logger.Info("result archive enabled", zap.String("bucket", config.AWSBucketName))
	}

	server := api.NewServer(gemini, fitter, sessions, history, archive, logger, api.Options{
		HumanImagesDir:    config.HumanImagesDir,
		GarmentImagesDir:  config.GarmentImagesDir,
		UploadDir:         config.UploadDir,
		KeepUploads:       config.KeepUploads,
		MaxUploadBytes:    config.MaxUploadMB << 20,
		SessionSecret:     secret,
		SessionTTL:        config.SessionTTL,
		TryOnTimeout:      config.TryOnTimeout,
		RateLimitRequests: config.RateLimitRequests,
		RateLimitWindow:   config.RateLimitWindow,
	})

	httpServer := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", config.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
