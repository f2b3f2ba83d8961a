// Package main runs the nextoral API server with tenant routing, sync endpoints and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nextoral/backend/config"
	"github.com/nextoral/backend/internal/attachments"
	"github.com/nextoral/backend/internal/auth"
	"github.com/nextoral/backend/internal/domains"
	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/internal/mutators"
	"github.com/nextoral/backend/internal/organizations"
	"github.com/nextoral/backend/internal/realtime"
	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
	"github.com/nextoral/backend/internal/session"
	"github.com/nextoral/backend/internal/syncapi"
	"github.com/nextoral/backend/internal/tenant"
	"github.com/nextoral/backend/internal/worker"
	"github.com/nextoral/backend/pkg/database"
	"github.com/nextoral/backend/pkg/queue"
	"github.com/nextoral/backend/pkg/redis"
	"github.com/nextoral/backend/pkg/response"
	"github.com/nextoral/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AttachmentsBucket:    cfg.AWS.AttachmentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	txm := database.NewTxManager(pool)
	clinicSchema := schema.Default()
	store := records.NewPostgresStore(pool, txm, clinicSchema, time.Now)
	guarded := records.Guarded(store, clinicSchema)

	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Sessions and auth
	sessions, err := session.NewStore(rdb.Client, []byte(cfg.Session.Secret), time.Duration(cfg.Session.TTLHours)*time.Hour)
	if err != nil {
		logger.Fatal("session store", zap.Error(err))
	}
	cookies := session.NewCookies(cfg.Session.CookieName, cfg.Tenancy.RootDomain, cfg.Session.Secure, sessions.TTL())
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	orgRepo := organizations.NewRepository(pool)
	authHandler := auth.NewHandler(auth.Deps{
		Users:       auth.NewRepository(pool),
		Memberships: orgRepo,
		Sessions:    sessions,
		Cookies:     cookies,
		OTP:         auth.NewOTPStore(rdb.Client, time.Duration(cfg.OTP.TTLMinutes)*time.Minute, cfg.OTP.Length, cfg.OTP.MaxAttempts),
		Emails:      jobQueue,
		JWT:         jwtService,
		Google:      auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleRedirectURL),
		HomeURL:     cfg.Tenancy.Protocol + "://" + cfg.Tenancy.RootDomain,
		Logger:      logger,
	})

	// Tenancy
	registry := domains.NewRegistry(rdb.Client, cfg.Tenancy.Protocol, cfg.Tenancy.RootDomain, logger)
	domainHandler := domains.NewHandler(registry, orgRepo)
	orgHandler := organizations.NewHandler(organizations.NewService(orgRepo, txm, registry, logger), sessions)

	// Sync
	clients := syncapi.NewClientRepository(pool)
	syncHandler := syncapi.NewHandler(
		syncapi.NewPusher(txm, clients, guarded, mutators.Default(), hub, logger),
		syncapi.NewPuller(store, clients),
	)

	requireUser := middleware.RequireUser()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.NewCORSPolicy(cfg.Server.CORSAllowedOrigins, cfg.Tenancy.RootDomain)))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Bearer-authenticated sync API; the websocket carries its token in the query.
	syncHandler.Register(router, middleware.Bearer(jwtService), realtime.ServeWs(hub, jwtService, logger))

	// Cookie-session API
	web := router.Group("")
	web.Use(session.Load(sessions, cookies, logger))
	{
		web.GET("/api/session", session.Handler{}.Me)
		authHandler.Register(web, requireUser)
		domainHandler.Register(web, requireUser)
		orgHandler.Register(web, requireUser)
		if s3Client != nil {
			attachments.NewHandler(attachments.NewService(guarded, s3Client, hub, logger)).Register(web, requireUser)
		} else {
			logger.Warn("attachments disabled: AWS_REGION not set")
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      tenant.Middleware(tenant.NewResolver(cfg.Tenancy.RootDomain), logger)(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (sign-in emails)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Email.InlineWorker {
		go worker.NewEmailProcessor(jobQueue, worker.NewMailer(cfg.Email, logger), logger).Run(workerCtx)
		logger.Info("email worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("root_domain", cfg.Tenancy.RootDomain))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
