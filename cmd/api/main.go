package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mediavault/backend/internal/ai"
	"github.com/mediavault/backend/internal/config"
	"github.com/mediavault/backend/internal/handlers"
	"github.com/mediavault/backend/internal/ingest"
	"github.com/mediavault/backend/internal/middleware"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/pkg/logger"
	"github.com/mediavault/backend/internal/pkg/media"
	"github.com/mediavault/backend/internal/services"
)

func main() {
	// Optional .env for local development; production runs from real env vars.
	_ = godotenv.Load()

	cfg := config.New()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatal("database init failed", "err", err)
	}
	if err := models.Migrate(db); err != nil {
		log.Fatal("migrations failed", "err", err)
	}

	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()

	tools := media.NewTools(log, cfg.FFmpegPath, cfg.FFprobePath, cfg.PDFToTextPath, cfg.ScratchPath, cfg.SubprocessTimeout)
	if err := tools.AssertReady(); err != nil {
		log.Fatal("media toolbox unavailable", "err", err)
	}

	provider, err := ai.NewProvider(cfg, log)
	if err != nil {
		log.Fatal("ai provider init failed", "err", err)
	}

	s3Service, err := services.NewS3Service(cfg)
	if err != nil {
		log.Fatal("s3 init failed", "err", err)
	}
	assetService := services.NewAssetService(db, s3Service, log)
	mediaService := services.NewMediaService(cfg, s3Service, assetService, log)
	expansionCache := services.NewExpansionCache(redisClient, provider.Expander(), cfg.ExpansionCacheTTL, log)
	searchService := services.NewSearchService(db, assetService, expansionCache, provider.Embedder(), log)

	coordinator, err := ingest.NewCoordinator(cfg, log, assetService, s3Service,
		tools, provider.Analyzer(), provider.Embedder(), provider.Transcriber())
	if err != nil {
		log.Fatal("pipeline init failed", "err", err)
	}
	defer coordinator.Close()

	// Periodically re-enqueue assets stuck in enrichment_failed. Off by
	// default since every sweep can spend AI budget.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.RetrySweepEnabled {
		go func() {
			ticker := time.NewTicker(cfg.RetrySweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					coordinator.RetrySweep(sweepCtx)
				}
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg, log))
	router.MaxMultipartMemory = 32 << 20

	assetHandler := handlers.NewAssetHandler(mediaService, assetService, searchService, coordinator, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		assets := api.Group("/assets")
		assets.Use(middleware.Auth(cfg.JWTSecret))
		assets.Use(middleware.UploadRateLimit(redisClient, cfg))
		{
			assets.POST("/upload", assetHandler.Upload)
			assets.GET("", assetHandler.List)
			assets.GET("/search", assetHandler.Search)
			assets.GET("/:id", assetHandler.Get)
			assets.PATCH("/:id", assetHandler.Rename)
			assets.DELETE("/:id", assetHandler.Delete)
			assets.POST("/:id/restore", assetHandler.Restore)
			assets.DELETE("/:id/purge", assetHandler.Purge)
			assets.GET("/:id/download", assetHandler.Download)
			assets.GET("/:id/scrub", assetHandler.ScrubFrame)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second, // large media uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", "err", err)
	}
	log.Info("server exited")
}
