package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/config"
	"coursehub.org/internal/course"
	"coursehub.org/internal/httpapi"
	"coursehub.org/internal/kv"
	"coursehub.org/internal/notify"
	"coursehub.org/internal/obs"
	"coursehub.org/internal/session"
	"coursehub.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		obs.Logger().Fatal("load config", zap.Error(err))
	}
	logger := obs.NewLogger(os.Stdout, obs.ParseLevel(cfg.LogLevel)).With(zap.String("service", "coursehub-api"))
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db    *sql.DB
		users auth.UserStore
		repo  course.Repository
	)
	if cfg.PostgresDSN != "" {
		db, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("open postgres", zap.Error(err))
		}
		defer db.Close()
		users = pg.NewUserStore(db)
		repo = pg.NewCourseRepository(db)
	} else {
		logger.Warn("COURSEHUB_PG_DSN not set, using in-memory users and courses")
		users = auth.NewMemoryUserStore()
		repo = course.NewMemoryRepository()
	}

	var store kv.Store
	if cfg.RedisURL != "" {
		rs, err := kv.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("open redis", zap.Error(err))
		}
		defer rs.Close()
		store = rs
	} else {
		logger.Warn("COURSEHUB_REDIS_URL not set, using in-memory sessions and cache")
		store = kv.NewMemoryStore()
	}

	var sender notify.Sender
	if cfg.MailEnabled() {
		sender, err = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		sender, err = notify.NewLogSender(logger)
	}
	if err != nil {
		logger.Fatal("build notifier", zap.Error(err))
	}

	tokens, err := auth.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}
	authSvc, err := auth.NewService(users, session.New(store, cfg.SessionTTL), tokens,
		auth.WithStoreTimeout(cfg.StoreTimeout),
		auth.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}
	if err := bootstrapAdmin(ctx, authSvc, cfg, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	catalog := course.NewCatalog(repo, store,
		course.WithCacheTTL(cfg.CacheTTL),
		course.WithCacheTimeout(cfg.StoreTimeout),
		course.WithCatalogLogger(logger),
	)
	engine := course.NewEngine(repo,
		course.WithInvalidator(catalog),
		course.WithNotifier(sender),
		course.WithStoreTimeout(cfg.StoreTimeout),
		course.WithNotifyTimeout(cfg.NotifyTimeout),
		course.WithLogger(logger),
	)

	probe := httpapi.ReadyProbe{DB: db, KV: store}
	api := httpapi.New(httpapi.Deps{
		Auth:              authSvc,
		Engine:            engine,
		Catalog:           catalog,
		Ready:             probe,
		Version:           version,
		Origins:           splitOrigins(cfg.Origin),
		AllowLocalOrigins: !cfg.Production(),
		CookieSecure:      cfg.CookieSecure,
		RateBurst:         cfg.RateBurst,
		RatePerSecond:     cfg.RatePerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthReporter(probe)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}
	go health.Run(ctx, 10*time.Second)

	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc serve", zap.Error(err))
			stop()
		}
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	logger.Info("stopped")
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
