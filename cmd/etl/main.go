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
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/etl"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/logger"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/source/postgres"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/warehouse/clickhouse"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/watermark"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New("etl", cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting batch ETL service",
		zap.String("environment", cfg.Service.Environment))

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

	// Source database
	pgClient, err := postgres.NewClient(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to create PostgreSQL client", zap.Error(err))
	}
	defer pgClient.Close()

	// Watermark store with optional operator overrides
	watermarks := watermark.NewClickHouseStore(chClient.Conn(), log)

	overrides, err := cfg.Sync.ParseWatermarkOverrides()
	if err != nil {
		log.Fatal("Invalid watermark overrides", zap.Error(err))
	}
	for table, cursor := range overrides {
		if err := watermarks.Force(ctx, table, cursor); err != nil {
			log.Fatal("Failed to apply watermark override",
				zap.String("table", table),
				zap.Error(err))
		}
	}

	// Assemble the pipeline
	extractor := postgres.NewExtractor(pgClient, log)
	loader := etl.NewLoader(repo, log)
	pipeline := etl.NewPipeline(extractor, loader, watermarks, cfg.Sync.PageSize, log)
	scheduler := etl.NewScheduler(pipeline, cfg.Sync.Interval(), cfg.Sync.RunTimeout(), log)

	// Ops endpoints
	go runOpsServer(cfg, pipeline, pgClient, repo, log)

	scheduler.Run(ctx)

	log.Info("Batch ETL service stopped")
}

func runOpsServer(cfg *config.Config, pipeline *etl.Pipeline, pg *postgres.Client, repo *clickhouse.Repository, log *zap.Logger) {
	if cfg.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := pg.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "source unreachable"})
			return
		}
		if err := repo.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "warehouse unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, pipeline.Status())
	})

	addr := ":" + cfg.Service.OpsPort
	log.Info("Ops server starting", zap.String("address", addr))
	if err := router.Run(addr); err != nil {
		log.Error("Ops server error", zap.Error(err))
	}
}
