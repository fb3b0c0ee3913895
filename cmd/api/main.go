package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	v1 "supportchat/cmd/api/router/v1"
	"supportchat/internal/auth"
	"supportchat/internal/config"
	cacheAdapter "supportchat/internal/infrastructure/cache/adapter"
	cacheport "supportchat/internal/infrastructure/cache/port"
	"supportchat/internal/infrastructure/database"
	queueAdapter "supportchat/internal/infrastructure/queue/adapter"
	queueport "supportchat/internal/infrastructure/queue/port"
	"supportchat/internal/infrastructure/realtime"
	relayAdapter "supportchat/internal/infrastructure/relay/adapter"
	relayport "supportchat/internal/infrastructure/relay/port"
	applog "supportchat/internal/log"
	"supportchat/internal/metrics"
	"supportchat/internal/pkg/messaging/application/task"
	repoAdapter "supportchat/internal/pkg/messaging/persistence/repository/adapter"
	httpHandler "supportchat/internal/pkg/messaging/presentation/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	cfg := config.Load()
	applog.Init(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	repo := repoAdapter.NewPgMessagingRepository(pool)

	var regOpts []realtime.Option
	if cfg.FocusedRooms {
		regOpts = append(regOpts, realtime.WithFocusedRooms())
	}
	registry := realtime.NewRegistry(regOpts...)
	presence := realtime.NewPresenceCoordinator()

	// Redis is optional: without it the server runs single-process with no
	// unread cache, no relay and no background queue.
	var (
		cache       cacheport.Cache
		relay       relayport.Relay
		queueClient queueport.Client
	)
	if cfg.RedisURL != "" {
		rc, err := cacheAdapter.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis cache connection failed")
		}
		defer rc.Close()
		cache = rc

		rl, err := relayAdapter.NewRedisRelay(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis relay connection failed")
		}
		defer rl.Close()
		relay = rl

		qc, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("queue client connection failed")
		}
		defer qc.Close()
		queueClient = qc

		qs, err := queueAdapter.NewAsynqServer(cfg.RedisURL, 4)
		if err != nil {
			log.Fatal().Err(err).Msg("queue server connection failed")
		}
		task.RegisterBackfillTask(qs, repo)
		go func() {
			if err := qs.Run(ctx); err != nil {
				log.Error().Err(err).Msg("queue server stopped")
			}
		}()

		// Apply peer broadcasts to the local registry.
		go func() {
			err := rl.Subscribe(ctx, func(ev relayport.Event) {
				registry.Broadcast(ev.Room, ev.Payload, "")
			})
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("relay subscription stopped")
			}
		}()
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Development token mint; disabled outside dev.
	if cfg.Env == "dev" {
		r.POST("/api/v1/dev/token", func(c *gin.Context) {
			var req struct {
				PrincipalID   string `json:"principal_id" binding:"required"`
				PrincipalType string `json:"principal_type" binding:"required"`
				Name          string `json:"name"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tok, err := auth.IssueAccessToken(req.PrincipalID, req.PrincipalType, req.Name, cfg.JWTSecret, cfg.AccessTokenTTL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": tok})
		})
	}

	v1.RegisterRoutes(r, httpHandler.Deps{
		Repo:      repo,
		Registry:  registry,
		Presence:  presence,
		Relay:     relay,
		Cache:     cache,
		Queue:     queueClient,
		JWTSecret: cfg.JWTSecret,
		Timeout:   cfg.InflightTimeout,
		PageSize:  cfg.PageSize,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
