package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hopecann/scheduling/internal/api"
	"github.com/hopecann/scheduling/internal/appointment"
	"github.com/hopecann/scheduling/internal/availability"
	"github.com/hopecann/scheduling/internal/config"
	"github.com/hopecann/scheduling/internal/db"
	"github.com/hopecann/scheduling/internal/identity"
	"github.com/hopecann/scheduling/internal/logging"
	"github.com/hopecann/scheduling/internal/notify"
	redisclient "github.com/hopecann/scheduling/internal/redis"
	"github.com/hopecann/scheduling/internal/slots"
	"github.com/hopecann/scheduling/internal/workflow"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresPool(), logger)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if cfg.AutoMigrate {
		n, err := db.Migrate(rootCtx, pgPool)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		logger.Info().Int("applied", n).Msg("migrations up to date")
	}

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.Redis())
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	store := availability.NewPgStore(pgPool)
	patients := identity.NewProvider(identity.NewPgDirectory(pgPool))

	booking := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		store,
		patients,
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		notifier,
		appointment.Options{
			Clock:          slots.SystemClock{},
			Location:       cfg.Location(),
			Horizon:        cfg.Horizon(),
			BookingTimeout: cfg.BookingTimeout,
		},
		logger,
	)

	manager := workflow.NewManager(booking, patients, workflow.NewRedisSessionStore(rdb, cfg.SessionTTL), workflow.Options{
		AskConsultType: cfg.AskConsultType,
		Location:       cfg.Location(),
		Clock:          slots.SystemClock{},
	}, logger)

	router := api.NewRouter(api.RouterConfig{
		Availability: availability.NewService(store, cfg.Window(), cfg.Partition(), logger),
		Booking:      booking,
		Workflow:     manager,
		Auth:         identity.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL),
		Patients:     patients,
		Health:       api.NewHealthHandler(pgPool, api.RedisPinger(rdb), cfg.Env, version),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
}

// buildNotifier publishes to RabbitMQ when RABBIT_URL is set and falls back
// to logging otherwise. Delivery is always asynchronous; the returned func
// drains in-flight deliveries before closing the broker connection.
func buildNotifier(cfg config.Config, logger zerolog.Logger) (*notify.Async, func()) {
	var (
		next     notify.Notifier = notify.NewLogNotifier(logger)
		closeFns []func() error
	)
	if cfg.RabbitURL != "" {
		pub, err := notify.NewAMQPNotifier(cfg.RabbitURL, cfg.NotifyExchange)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unavailable, notifications will be logged only")
		} else {
			logger.Info().Str("exchange", cfg.NotifyExchange).Msg("publishing notifications to rabbitmq")
			next = pub
			closeFns = append(closeFns, pub.Close)
		}
	}

	async := notify.NewAsync(next, cfg.NotifyTimeout, logger)
	return async, func() {
		async.Wait()
		for _, fn := range closeFns {
			if err := fn(); err != nil {
				logger.Error().Err(err).Msg("error closing notifier")
			}
		}
	}
}
