package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/auth"
	bookingdomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	bookinghandler "github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/handler"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/match"
	bookingrepo "github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/repository"
	bookingservice "github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/service"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/config"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/driver"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	farehandler "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/handler"
	farerepo "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/repository"
	fareservice "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/service"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/http/middleware"
	outboxworker "github.com/A1taxi-Hosur/cust-app-sub001/internal/outbox"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/route"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
	"github.com/A1taxi-Hosur/cust-app-sub001/pkg/observability"
	outboxpkg "github.com/A1taxi-Hosur/cust-app-sub001/pkg/outbox"
)

// dispatchStore is the read/write pair the booking service needs from the
// assignment record. Both the memory and Postgres stores satisfy it.
type dispatchStore interface {
	bookingservice.AssignmentRecorder
	bookingdomain.AssignmentReader
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("customer-api")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "customer-api")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := config.LoadCustomerAPI()

	var pool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("customerapi")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	fareSvc, err := fareservice.New(fareservice.Config{
		Rates:  buildRates(pool),
		Routes: buildRoutes(cfg.GoogleMapsAPIKey, logger),
		Zones:  buildZones(pool, redisClient),
		Surge:  fareservice.StaticSurge{Mult: cfg.SurgeMultiplier},
		Logger: logger.Named("fares"),
	})
	if err != nil {
		logger.Fatal("fare service", zap.Error(err))
	}

	dispatch := buildDispatchStore(pool)
	reader := buildDispatchReader(ctx, cfg, dispatch, logger)
	directory, closeDirectory := buildDirectory(cfg, logger)
	defer closeDirectory()

	var notifier bookingdomain.AssignmentNotifier
	var publisher bookingservice.AssignmentPublisher
	if natsConn != nil {
		bus := match.NewNATSNotifier(natsConn, logger.Named("assignments"))
		notifier = bus
		publisher = bus
	}

	var repo bookingdomain.Repository = bookingrepo.NewMemoryRepository()
	if pool != nil {
		repo = bookingrepo.NewPostgresRepository(pool)
	}

	var idem bookingdomain.IdempotencyRepository = bookingrepo.NewMemoryIdempotencyRepo()
	if redisClient != nil {
		idem = bookingrepo.NewRedisIdempotencyRepo(redisClient, "booking", cfg.IdempotencyTTL)
	}

	// With Postgres the outbox relay owns event delivery; without it events
	// go straight to NATS.
	var events bookingdomain.EventPublisher
	if pool == nil && natsConn != nil {
		events = outboxpkg.NewPublisher(natsConn, "booking.events")
	}

	bookingSvc, err := bookingservice.New(bookingservice.Config{
		Repo:          repo,
		Fares:         fareSvc,
		Idempotency:   idem,
		Events:        events,
		Directory:     directory,
		Notifier:      notifier,
		Reader:        reader,
		Publisher:     publisher,
		Recorder:      dispatch,
		SearchTimeout: cfg.SearchTimeout,
		PollInterval:  cfg.PollInterval,
		BaseContext:   ctx,
		Logger:        logger.Named("bookings"),
	})
	if err != nil {
		logger.Fatal("booking service", zap.Error(err))
	}

	fareHTTP := farehandler.NewFareHandler(fareSvc, logger.Named("fares"))
	bookingHTTP := bookinghandler.NewBookingHandler(bookingSvc, logger.Named("bookings"))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Logger, chimiddleware.Recoverer)
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.JWTSecret != "" {
			api.Use(auth.Middleware(cfg.JWTSecret, auth.RoleRider))
		}
		if redisClient != nil {
			limiter := middleware.NewRateLimiter(redisClient,
				middleware.RateConfig{Rate: cfg.QuoteRateRPS, Burst: cfg.QuoteRateBurst},
				middleware.RateConfig{Rate: cfg.BookingRateRPS, Burst: cfg.BookingRateBurst},
			)
			api.Use(limiter.Middleware)
		}
		api.Mount("/fares", fareHTTP.Routes())
		api.Mount("/bookings", bookingHTTP.Routes())
	})
	r.Mount("/observability", observability.MetricsRouter(readyChecks(pool, redisClient)...))

	// Driver-side endpoints stay off the public listener.
	internalRouter := chi.NewRouter()
	internalRouter.Use(chimiddleware.RequestID, chimiddleware.Recoverer)
	internalRouter.Mount("/internal/v1/bookings", bookingHTTP.InternalRoutes())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	internalSrv := &http.Server{
		Addr:              cfg.InternalAddr,
		Handler:           internalRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if pool != nil && natsConn != nil {
		worker := outboxworker.NewWorker(pool, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("outbox worker disabled", zap.Bool("db", pool != nil), zap.Bool("nats", natsConn != nil))
	}

	go func() {
		logger.Info("customer api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("internal api listening", zap.String("addr", internalSrv.Addr))
		if err := internalSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("internal http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = internalSrv.Shutdown(shutdownCtx)
}

func buildZones(pool *pgxpool.Pool, rdb *redis.Client) zone.Repository {
	if pool == nil {
		return zone.NewStaticRepository(zone.HosurDefaults())
	}
	var repo zone.Repository = zone.NewPostgresRepository(pool)
	if rdb != nil {
		repo = zone.NewCachedRepository(repo, rdb, 5*time.Minute)
	}
	return repo
}

func buildRates(pool *pgxpool.Pool) faredomain.ConfigRepository {
	if pool == nil {
		return farerepo.NewMemoryConfig()
	}
	return farerepo.NewPostgresConfig(pool)
}

func buildRoutes(apiKey string, logger *zap.Logger) route.Provider {
	fallback := route.NewFallbackProvider()
	if apiKey == "" {
		return fallback
	}
	google, err := route.NewGoogleProvider(apiKey)
	if err != nil {
		logger.Warn("google maps client unavailable", zap.Error(err))
		return fallback
	}
	return route.NewChainProvider(logger, google, fallback)
}

func buildDispatchStore(pool *pgxpool.Pool) dispatchStore {
	if pool == nil {
		return bookingrepo.NewMemoryDispatchStore()
	}
	return bookingrepo.NewPostgresDispatchStore(pool)
}

func buildDispatchReader(ctx context.Context, cfg config.CustomerAPI, store dispatchStore, logger *zap.Logger) bookingdomain.AssignmentReader {
	if cfg.FirebaseDatabaseURL == "" {
		return store
	}
	reader, err := bookingrepo.NewFirebaseDispatchReader(ctx, cfg.FirebaseDatabaseURL, cfg.FirebaseCredentialsFile)
	if err != nil {
		logger.Warn("firebase dispatch reader unavailable", zap.Error(err))
		return store
	}
	return reader
}

func buildDirectory(cfg config.CustomerAPI, logger *zap.Logger) (bookingdomain.DriverDirectory, func()) {
	if cfg.DirectoryAddr != "" {
		client, err := driver.Dial(cfg.DirectoryAddr)
		if err == nil {
			return client, func() { _ = client.Close() }
		}
		logger.Warn("driver directory dial failed", zap.Error(err))
	}
	registry := driver.NewRegistry()
	registry.SeedDemoFleet()
	return registry, func() {}
}

func readyChecks(pool *pgxpool.Pool, rdb *redis.Client) []observability.ReadyCheck {
	var checks []observability.ReadyCheck
	if pool != nil {
		checks = append(checks, pool.Ping)
	}
	if rdb != nil {
		checks = append(checks, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	return checks
}
