package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/AnTengye/tenderanalyzer/handler"
	"github.com/AnTengye/tenderanalyzer/middleware"
	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/AnTengye/tenderanalyzer/service"
	"github.com/AnTengye/tenderanalyzer/web"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := config.LoadDotenv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded successfully", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	ctx := context.Background()

	// Initialize services
	completer, err := service.NewCompleter(ctx, &cfg.AI)
	if err != nil {
		slog.Error("failed to initialize AI client", "error", err)
		os.Exit(1)
	}
	if closer, ok := completer.(io.Closer); ok {
		defer closer.Close()
	}

	branding := service.LoadBranding(ctx, &cfg.Report)
	store := service.NewAnalysisStore(&cfg.Store)
	analyzer := service.NewAnalyzer(cfg, completer, branding)

	if cfg.Archive.Enabled {
		archive, err := service.NewMinioArchive(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize report archive", "error", err)
			os.Exit(1)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
		analyzer.SetArchive(archive)
		slog.Info("report archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	tmpl, err := web.Templates()
	if err != nil {
		slog.Error("failed to parse templates", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	analysisHandler := handler.NewAnalysisHandler(analyzer, store, cfg.Upload.MaxBytes())
	webHandler := handler.NewWebHandler(analyzer, store, cfg)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.MaxMultipartMemory = cfg.Upload.MaxBytes()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(cacheMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"analyses":  store.Count(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Browser pages
	router.GET("/login", authHandler.LoginPage)
	router.POST("/login", authHandler.LoginForm)
	router.POST("/logout", authHandler.Logout)

	pages := router.Group("/")
	pages.Use(middleware.WebAuthMiddleware(&cfg.Auth))
	{
		pages.GET("/", webHandler.Index)
		pages.POST("/analyses", webHandler.Upload)
		pages.GET("/analyses/:id", webHandler.Preview)
		pages.POST("/analyses/:id/report", webHandler.Report)
	}

	// Public API routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected API routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/analyses", analysisHandler.Upload)
		protected.GET("/analyses", analysisHandler.List)
		protected.GET("/analyses/:id", analysisHandler.Get)
		protected.DELETE("/analyses/:id", analysisHandler.Delete)
		protected.POST("/analyses/:id/report", analysisHandler.Report)
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeExpired(purgeCtx, store, time.Minute)

	// Analysis waits on several model calls, so writes get a long deadline
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "auth", cfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// purgeExpired drops analyses past their export window until ctx is done
func purgeExpired(ctx context.Context, store *service.AnalysisStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.PurgeExpired()
		}
	}
}

// corsMiddleware handles CORS headers for API clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Next()
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, Origin, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Report-URL, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware keeps analyses and reports out of shared caches
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/analyses") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
			return
		}

		if path == "/" || path == "/login" {
			c.Header("Cache-Control", "private, no-cache")
		}

		c.Next()
	}
}
