package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"interviewprep/internal/config"
	"interviewprep/internal/features"
	"interviewprep/internal/handler"
	"interviewprep/internal/media"
	"interviewprep/internal/prompts"
	"interviewprep/internal/repo"
	"interviewprep/internal/service"
	redisutil "interviewprep/internal/utils/redis"
	rabbit "interviewprep/pkg/rabbit/pkg"
)

func startServer(cfg *config.Config, logger *zap.Logger) {
	if cfg.Tracing.Enable {
		tracer.Start(tracer.WithService(cfg.Tracing.Service))
		defer tracer.Stop()
	}

	mongoCtx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer cancel()
	client, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	if err := client.Ping(mongoCtx, nil); err != nil {
		logger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	repository := repo.New(client, cfg.Mongo.Database)

	uploads, err := media.NewStorage(cfg.Uploads.Dir, cfg.Uploads.Retain, logger)
	if err != nil {
		logger.Fatal("Failed to initialize upload storage", zap.Error(err))
	}

	var broker *rabbit.Config
	if cfg.RabbitMQ.Enable {
		broker = &rabbit.Config{
			Address:      cfg.RabbitMQ.Address,
			Port:         cfg.RabbitMQ.Port,
			Username:     cfg.RabbitMQ.Username,
			Password:     cfg.RabbitMQ.Password,
			PublishQueue: cfg.RabbitMQ.PublishQueue,
			ExpireTime:   cfg.RabbitMQ.ExpireTime,
		}
	}

	deps := features.Deps{
		Uploads:     uploads,
		Extractor:   media.NewExtractor(cfg.Uploads.ExtractTimeout),
		Transcriber: service.NewWhisperClient(cfg.Whisper, logger),
		LLM:         service.NewLLMClient(cfg.LLM, logger),
		Prompts:     prompts.NewBuilder(cfg.LLM.PromptFile, logger),
		Locker: redisutil.New(cfg.Redis.Enable, redisutil.Config{
			Address:   cfg.Redis.Address,
			Namespace: cfg.Redis.Namespace,
		}),
		Rabbit: rabbit.New(broker),
	}

	svc := features.New(repository, deps, cfg, logger)
	svc.Start()
	defer svc.Stop()

	identity := service.NewIdentityClient(cfg.Identity, logger)
	router := handler.NewHandler(svc, identity, logger).Router(cfg)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("HTTP server stopped")
}
