package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"casehub-backend/internal/auth"
	"casehub-backend/internal/cache"
	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/config"
	"casehub-backend/internal/content"
	"casehub-backend/internal/db"
	"casehub-backend/internal/editor"
	"casehub-backend/internal/handlers"
	"casehub-backend/internal/metrics"
	"casehub-backend/internal/middleware"
	"casehub-backend/internal/notifications"
	"casehub-backend/internal/uploads"
	"casehub-backend/internal/validation"
	"casehub-backend/internal/workflow"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
	defer database.Close(context.Background())

	if err := database.EnsureIndexes(ctx); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	checks := map[string]handlers.Check{"mongo": database.Ping}

	var cacheStore cache.Cache = cache.NewNoop()
	redisCfg := cache.RedisConfig{URL: cfg.RedisURL, Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	if redisCfg.Enabled() {
		redisCache, err := cache.Open(ctx, redisCfg)
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		defer redisCache.Close()
		checks["redis"] = redisCache.Ping
		cacheStore = redisCache
	} else {
		logger.Warn("redis disabled: public cache off and editor history kept in memory only")
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewManager(cfg.JWTSecret,
			time.Duration(cfg.AccessTTLMinutes)*time.Minute,
			time.Duration(cfg.RefreshTTLMinutes)*time.Minute,
		)
	}

	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	var reviewNotifier editor.ReviewNotifier
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
		reviewNotifier = mailer
	}

	contentRepo, err := content.Load(cfg.ContentDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("content dir missing: serving no content", slog.String("dir", cfg.ContentDir))
		contentRepo = content.New(nil, nil)
	case err != nil:
		logger.Error("content load failed", slog.String("dir", cfg.ContentDir), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("content loaded", slog.Int("sections", len(contentRepo.Sections())))

	defaultRole, err := workflow.ParseRole(cfg.CMSDefaultRole)
	if err != nil {
		logger.Error("invalid CMS_DEFAULT_ROLE", slog.String("role", cfg.CMSDefaultRole))
		os.Exit(1)
	}

	metrics.MustRegister()
	val := validation.New()

	server := &handlers.Server{
		Cfg:    cfg,
		Val:    val,
		Log:    logger,
		Tokens: jwtManager,
		Checks: checks,
	}

	caseStudiesRepo := casestudies.NewRepository(database.CaseStudies)
	caseStudiesService := casestudies.NewService(caseStudiesRepo, cacheStore, cfg.CacheTTL(), cfg.Timezone, logger)
	caseStudiesHandler := casestudies.NewHandler(caseStudiesService, logger)

	sessions := editor.NewManager(caseStudiesService, editor.ManagerOptions{
		Storage:     cacheStore,
		SessionTTL:  cfg.SessionTTL(),
		Debounce:    cfg.HistoryDebounce,
		HistorySize: cfg.HistoryLimit,
		DefaultRole: defaultRole,
		Log:         logger,
		OnSnapshot:  metrics.RecordSnapshot,
	})
	defer sessions.Close()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SessionSweepSpec, func() {
		if n := sessions.EvictIdle(); n > 0 {
			logger.Info("editor sessions: evicted idle", slog.Int("count", n))
		}
	}); err != nil {
		logger.Error("session sweep schedule invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()
	editorHandler := editor.NewHandler(sessions, caseStudiesService, val, logger, editor.HandlerOptions{
		Notifier:     reviewNotifier,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL(),
	})

	contentHandler := content.NewHandler(contentRepo, logger)
	uploadsHandler := uploads.NewHandler(cfg.UploadDir, cfg.UploadPublicPrefix, int64(cfg.UploadMaxMB)<<20, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitLogin, window)
	uploadsLimiter := middleware.NewRateLimiter(cfg.RateLimitUploads, window)

	r.Get("/healthz", server.Health)
	r.Handle("/metrics", metrics.Handler())
	r.Handle(strings.TrimRight(uploadsHandler.Prefix(), "/")+"/*", http.StripPrefix(uploadsHandler.Prefix(), uploadsHandler.Files()))

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/case-studies", caseStudiesHandler.Routes)
		api.Get("/content", contentHandler.ListSections)
		api.Get("/content/{section}", contentHandler.GetSection)

		api.Route("/admin", func(admin chi.Router) {
			admin.With(loginLimiter.Middleware).Post("/login", server.AdminLogin)
			admin.Post("/refresh", server.AdminRefresh)
			admin.Post("/logout", server.AdminLogout)

			// Middlewares must be attached before routes; login stays public.
			admin.Group(func(protected chi.Router) {
				protected.Use(middleware.AdminAuth(cfg.AdminAPIKey, jwtManager))
				protected.Get("/me", server.AdminMe)
				protected.Route("/cms", editorHandler.Routes)
				protected.With(uploadsLimiter.Middleware).Post("/uploads", uploadsHandler.Upload)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
