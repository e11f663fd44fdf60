package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/aimarket/internal/config"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver"
	"github.com/MrSnakeDoc/aimarket/internal/httpserver/deps"
	"github.com/MrSnakeDoc/aimarket/internal/listing"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
	"github.com/MrSnakeDoc/aimarket/internal/notify"
	"github.com/MrSnakeDoc/aimarket/internal/redis"
	"github.com/MrSnakeDoc/aimarket/internal/scheduler"
	"github.com/MrSnakeDoc/aimarket/internal/seed"
	"github.com/MrSnakeDoc/aimarket/internal/store"
	"github.com/MrSnakeDoc/aimarket/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/aimarket/internal/store/redis"
	sqlstore "github.com/MrSnakeDoc/aimarket/internal/store/sql"
	"github.com/MrSnakeDoc/aimarket/internal/utils"
	"github.com/MrSnakeDoc/aimarket/internal/version"
)

// feed is the change feed between the record store and the notifier.
type feed interface {
	events.Publisher
	events.Subscriber
}

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       store.Store
	dispatcher  *notify.Dispatcher
	sweeper     *scheduler.PendingSweeper
	redisClient *goredis.Client
	closers     []io.Closer
}

// New wires every component from the environment.
func New() (*App, error) {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	m := metrics.New()

	a := &App{cfg: cfg, logger: loggerClient}

	// Initialize Redis early - fail fast if unavailable
	if cfg.NeedsRedis() {
		client, err := redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
	}

	var bus feed
	switch cfg.EventBus {
	case config.BusRedis:
		bus = events.NewRedisBus(a.redisClient, cfg.EventChannel, loggerClient)
	default:
		bus = events.NewBus(cfg.EventBuffer, loggerClient, m.EventDropped)
	}

	st, err := a.openStore(bus)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = st
	loggerClient.Info("record store ready", logger.String("backend", cfg.Store))

	if cfg.SeedFile != "" {
		if _, err := seed.Apply(context.Background(), st, cfg.SeedFile, time.Now(), logger.Named(loggerClient, "seed")); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
	}

	if mailer := a.mailer(); mailer != nil {
		notifyLog := logger.Named(loggerClient, "notify")
		var claims notify.Claims
		if cfg.EventBus == config.BusRedis {
			// every replica receives each insert
			claims = notify.NewRedisClaims(a.redisClient, "")
		}
		notifier := notify.New(mailer, notify.Options{
			To:       cfg.NotifyTo,
			From:     cfg.NotifyFrom,
			DedupTTL: cfg.NotifyDedup,
			Claims:   claims,
			Logger:   notifyLog,
			Metrics:  m,
		})
		a.dispatcher = notify.NewDispatcher(bus, notifier, notifyLog)
	} else {
		loggerClient.Info("notifications disabled")
	}

	if cfg.PendingTTL > 0 {
		a.sweeper = scheduler.NewPendingSweeper(st, logger.Named(loggerClient, "sweeper"), m, cfg.SweepInterval, cfg.PendingTTL)
	}

	// Dependencies passed to routes.
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Build:        version.Get(),
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		CORSOrigins:  cfg.CORSOrigins,
		Listings: listing.NewService(st, listing.Options{
			StrictWrites: cfg.StrictWrites,
			Logger:       loggerClient,
			Metrics:      m,
		}),
		Metrics:           m,
		SubmitBurst:       cfg.SubmitBurst,
		SubmitRefillPerHr: cfg.SubmitRefillPerHr,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		RequestTimeout:    cfg.RequestTimeout,
	}
	a.server = httpserver.New(cfg, loggerClient, d)

	return a, nil
}

func (a *App) openStore(pub events.Publisher) (store.Store, error) {
	switch a.cfg.Store {
	case config.StoreRedis:
		return redisstore.NewStore(a.redisClient, pub, a.logger), nil

	case config.StoreSQL:
		db, err := sqlstore.Open(a.cfg.SQLDriver, a.cfg.SQLDSN, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sql store: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlDB)
		return sqlstore.New(db, pub, a.logger)

	default:
		return memory.New(memory.Options{
			Path:      a.cfg.DataFile,
			Publisher: pub,
			Logger:    a.logger,
		})
	}
}

func (a *App) mailer() notify.Mailer {
	switch a.cfg.Mailer {
	case config.MailerSMTP:
		return &notify.SMTPMailer{
			Addr:     a.cfg.SMTPAddr,
			Username: a.cfg.SMTPUser,
			Password: a.cfg.SMTPPassword,
		}
	case config.MailerLog:
		return notify.LogMailer{Logger: logger.Named(a.logger, "mailer")}
	default:
		return nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting AI Marketplace %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("aimarket %s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.startBackground(ctx); err != nil {
		a.stopBackground()
		a.close()
		_ = a.logger.Sync()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.stopBackground()
	a.close()

	if runErr == nil {
		a.logger.Info("✅ AI Marketplace stopped cleanly")
	}
	_ = a.logger.Sync()
	return runErr
}

// startBackground starts the notification dispatcher then the sweeper.
func (a *App) startBackground(ctx context.Context) error {
	if a.dispatcher != nil {
		if err := a.dispatcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start notifications: %w", err)
		}
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pending sweeper: %w", err)
		}
	}
	return nil
}

// stopBackground is safe on workers that never started.
func (a *App) stopBackground() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	// in-flight notifications finish before the feed goes away
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
}

func (a *App) close() {
	for _, c := range a.closers {
		utils.CloseLogged(c, a.logger, "sql store")
	}
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, a.logger, "redis")
	}
}
