package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/config"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/handler"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/middleware"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/pkg/logger"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	ctx := context.Background()

	// Stores: Postgres when a database URL is configured, in-memory otherwise
	var sowStore service.SOWStore
	var userStore service.UserStore
	if cfg.Database.URL != "" {
		pool, err := service.NewPostgresPool(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := service.EnsureSchema(ctx, pool); err != nil {
			slog.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		sowStore = service.NewPostgresSOWStore(pool)
		userStore = service.NewPostgresUserStore(pool)
		slog.Info("using postgres store")
	} else {
		sowStore = service.NewMemorySOWStore()
		userStore = service.NewMemoryUserStore()
		slog.Warn("no database configured, using in-memory store")
	}

	var archiveSvc *service.ArchiveService
	if cfg.Archive.Enabled {
		archiveSvc, err = service.NewArchiveService(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize archive service", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
	}

	stripeSvc := service.NewStripeService(&cfg.Stripe)
	aiSvc := service.NewAIService(&cfg.AI)

	authHandler := handler.NewAuthHandler(userStore, &cfg.Auth)
	sowHandler := handler.NewSOWHandler(sowStore, archiveSvc)
	paymentHandler := handler.NewPaymentHandler(sowStore, userStore, stripeSvc, cfg.Server.PublicBaseURL)
	draftHandler := handler.NewDraftHandler(aiSvc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(corsMiddleware())           // CORS
	// Rate limiting; Stripe retries bursts of webhooks, so that route is exempt
	router.Use(middleware.RateLimit(100, time.Minute, "/api/payments/webhook"))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/signup", authHandler.Signup)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/payments/webhook", paymentHandler.Webhook)

		// Counterparty routes reached from the shared contract link. The
		// optional token lets the lifecycle reject owners countersigning
		// their own documents.
		public := api.Group("/public")
		public.Use(middleware.OptionalAuth(&cfg.Auth))
		{
			public.GET("/sows/:slug", sowHandler.GetBySlug)
			public.POST("/sows/:slug/sign", sowHandler.SignAsClient)
			public.POST("/sows/:slug/checkout", paymentHandler.Checkout)
			public.POST("/sows/:slug/paid", paymentHandler.MarkPaidRedirect)
		}
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/sows", sowHandler.Create)
		protected.GET("/sows", sowHandler.List)
		protected.GET("/sows/:id", sowHandler.Get)
		protected.PUT("/sows/:id", sowHandler.Update)
		protected.POST("/sows/:id/sign", sowHandler.SignAsProvider)
		protected.GET("/sows/:id/archive", sowHandler.ArchiveLink)
		protected.POST("/ai/draft", draftHandler.Draft)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
