package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/config"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/logger"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/stream"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/warehouse/clickhouse"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New("streamer", cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CDC stream service",
		zap.String("environment", cfg.Service.Environment),
		zap.Strings("topics", cfg.Kafka.Topics))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Destination warehouse
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	repo := clickhouse.NewRepository(chClient, log)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Dead-letter path, when configured
	var deadLetter *stream.DeadLetter
	if cfg.Kafka.DeadLetterSuffix != "" {
		deadLetter, err = stream.NewDeadLetter(cfg.Kafka.BootstrapServers, cfg.Kafka.DeadLetterSuffix, log)
		if err != nil {
			log.Fatal("Failed to create dead-letter producer", zap.Error(err))
		}
		defer deadLetter.Close()
	} else {
		log.Info("No dead-letter suffix configured, undecodable messages halt their topic")
	}

	processor := stream.NewProcessor(repo, log)
	consumer := stream.NewConsumer(cfg.Kafka, processor, deadLetter, log)

	// Ops endpoints
	go runOpsServer(cfg, consumer, repo, log)

	if err := consumer.Start(ctx); err != nil {
		log.Fatal("Consumer stopped with error", zap.Error(err))
	}

	log.Info("CDC stream service stopped")
}

func runOpsServer(cfg *config.Config, consumer *stream.Consumer, repo *clickhouse.Repository, log *zap.Logger) {
	if cfg.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := repo.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "warehouse unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, consumer.Stats())
	})

	addr := ":" + cfg.Service.OpsPort
	log.Info("Ops server starting", zap.String("address", addr))
	if err := router.Run(addr); err != nil {
		log.Error("Ops server error", zap.Error(err))
	}
}
