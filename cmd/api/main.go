package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"timeclock/internal/auth"
	"timeclock/internal/chat"
	"timeclock/internal/command"
	"timeclock/internal/config"
	"timeclock/internal/httpmiddleware"
	"timeclock/internal/idle"
	"timeclock/internal/queue"
	"timeclock/internal/store"
	"timeclock/internal/tracking"
	"timeclock/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogFile)
	defer log.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatalw("gateway failed", "err", err)
	}
}

func run(cfg config.App, log *zap.SugaredLogger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		ledgerStore tracking.Store
		db          *store.DB
		err         error
	)
	if cfg.StoreBackend == "postgres" {
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		ledgerStore = store.NewPostgresStore(db.Client)
	} else {
		ledgerStore, err = store.NewFileStore(cfg.DataDir)
		if err != nil {
			return err
		}
	}

	svc, err := tracking.NewService(ctx, ledgerStore, cfg.DefaultTimezone)
	if err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient.Client, "timeclock:notices")
	} else {
		q = queue.NewInMemory(64)
	}

	monitor := idle.NewMonitor(svc, q, cfg.IdleThreshold, cfg.IdleInterval, cfg.IdleFirstDelay, log)
	go monitor.Run(ctx)

	// With the in-memory queue there is no separate worker process, so
	// notices are delivered from this one.
	if cfg.QueueBackend != "redis" {
		chatClient := chat.New(cfg.ChatServiceURL, cfg.ChatSkip)
		go func() {
			if err := idle.Deliver(ctx, q, chatClient, log); err != nil {
				log.Errorw("notice delivery stopped", "err", err)
			}
		}()
	}

	router := command.NewRouter(svc, monitor, cfg.ConfirmTTL, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsHeaders())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		redisHealthy := true
		if cfg.QueueBackend == "redis" {
			redisHealthy = redisClient.Healthy(c.Request.Context())
			if !redisHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy})
	})

	r.POST("/v1/gateways/register", func(c *gin.Context) {
		var req struct {
			GatewayID string `json:"gateway_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.GatewayID, "gateway", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.GatewayAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/commands", func(c *gin.Context) {
		var cmd command.Command
		if err := c.ShouldBindJSON(&cmd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cmd.Name == "" || cmd.UserID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and user_id required"})
			return
		}
		c.JSON(http.StatusOK, router.Dispatch(c.Request.Context(), cmd))
	})

	// Free text, used for yes/no confirmations when buttons are not
	// available on the front-end.
	authGroup.POST("/messages", func(c *gin.Context) {
		var req struct {
			UserID int64  `json:"user_id" binding:"required"`
			Text   string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reply, handled := router.HandleText(c.Request.Context(), req.UserID, req.Text)
		if !handled {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, reply)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("gateway listening", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("forced shutdown", "err", err)
	}
	log.Info("gateway exited")
	return nil
}

// corsHeaders allows browser-based gateway dashboards to call the API.
func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// securityHeaders sets the usual hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
