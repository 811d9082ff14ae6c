package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Techinsane-official/perfumex-sub001/controllers"
	"github.com/Techinsane-official/perfumex-sub001/database"
	"github.com/Techinsane-official/perfumex-sub001/kafka"
	"github.com/Techinsane-official/perfumex-sub001/metrics"
	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
	"github.com/Techinsane-official/perfumex-sub001/routes"
	"github.com/Techinsane-official/perfumex-sub001/scrapers"
	servicepkg "github.com/Techinsane-official/perfumex-sub001/services"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.ConnectPostgres(logger, cfg.DSN(),
		&models.Supplier{},
		&models.SupplierProduct{},
		&models.ImportSession{},
		&models.ImportSnapshot{},
		&models.ScrapingSource{},
		&models.ScrapingJob{},
		&models.PriceScrapingResult{},
	)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	if err := database.SeedScrapingSources(db, logger); err != nil {
		logger.Error("Failed to seed scraping sources", zap.Error(err))
	}

	rdb := database.NewRedisClient(cfg.RedisURL, logger)

	var producer kafka.Publisher
	if cfg.KafkaBrokers != "" {
		kp := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger)
		defer kp.Close()
		producer = kp
	} else {
		logger.Warn("KAFKA_BROKERS not set, event publishing disabled")
	}

	metricsReg := metrics.NewRegistry()

	// Repositories
	productRepo := repository.NewGormProductRepository(db)
	supplierRepo := repository.NewGormSupplierRepository(db)
	importRepo := repository.NewGormImportRepository(db)
	scanRepo := repository.NewGormScanRepository(db)
	sourceRepo := repository.NewGormSourceRepository(db)

	// Scraper registry with shared HTTP client
	registry := scrapers.NewRegistry(scrapers.Deps{
		Client:  &http.Client{Timeout: 20 * time.Second},
		Metrics: metricsReg,
		Logger:  logger,
	})

	// Services
	resolver := servicepkg.NewDuplicateResolver(productRepo)
	snapshotSvc := servicepkg.NewSnapshotService(productRepo, importRepo, logger)
	importSvc := servicepkg.NewImportService(
		productRepo, supplierRepo, importRepo,
		resolver, snapshotSvc, producer, metricsReg, logger,
		time.Duration(cfg.ImportBatchDelayMs)*time.Millisecond,
	)
	scanSvc := servicepkg.NewScanService(
		productRepo, supplierRepo, scanRepo, sourceRepo,
		registry, producer, metricsReg, logger,
	)
	supplierSvc := servicepkg.NewSupplierService(supplierRepo, productRepo, logger)
	sourceSvc := servicepkg.NewSourceService(sourceRepo, logger)

	if err := scanSvc.RecoverInterrupted(context.Background()); err != nil {
		logger.Error("Failed to recover interrupted scan jobs", zap.Error(err))
	}

	// Controllers
	validator := controllers.NewRequestValidator()
	importCtrl := controllers.NewImportController(importSvc, snapshotSvc, rdb, validator, cfg.ImportStorageDir)
	scanCtrl := controllers.NewScanController(scanSvc, validator)
	supplierCtrl := controllers.NewSupplierController(supplierSvc, validator)
	sourceCtrl := controllers.NewSourceController(sourceSvc)

	r := gin.New()
	r.Use(gin.Recovery()) // Recover from panics

	// Global request-logging middleware
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
		)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "catalog-service"})
	})
	r.GET("/metrics", gin.WrapH(metricsReg.Handler()))

	routes.RegisterRoutes(r, importCtrl, scanCtrl, supplierCtrl, sourceCtrl)

	// Background worker consuming queued imports
	workerCtx, workerCancel := context.WithCancel(context.Background())
	servicepkg.StartImportWorker(workerCtx, rdb, importSvc, cfg.ImportStorageDir)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Catalog service started", zap.String("port", cfg.Port))
	<-quit
	logger.Info("Shutting down catalog service...")

	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close Redis", zap.Error(err))
		}
	}

	logger.Info("Catalog service stopped gracefully")
}
