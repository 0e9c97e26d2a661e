package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/config"
	"github.com/kcirtapfromspace/offleash-sub002/internal/db"
	"github.com/kcirtapfromspace/offleash-sub002/internal/grpcapi"
	httpserver "github.com/kcirtapfromspace/offleash-sub002/internal/http-server"
	"github.com/kcirtapfromspace/offleash-sub002/internal/lock"
	"github.com/kcirtapfromspace/offleash-sub002/internal/logger"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/repository"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
	"github.com/kcirtapfromspace/offleash-sub002/internal/travel"
)

func main() {
	// 1. Config and logger.
	cfg := config.MustLoad()

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("starting offleash scheduling core", zap.String("env", cfg.Env))

	// 2. Database.
	gormDB, err := db.NewGormDB(&cfg.DB)
	if err != nil {
		zlog.Fatal("init db", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := model.AutoMigrate(gormDB); err != nil {
			zlog.Fatal("auto migrate", zap.Error(err))
		}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		zlog.Fatal("sql DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// 3. Redis, when configured.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zlog.Fatal("connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
	}

	// 4. Repositories and services.
	walkerRepo := repository.NewGormWalkerRepository(gormDB)
	serviceRepo := repository.NewGormServiceRepository(gormDB)
	locationRepo := repository.NewGormLocationRepository(gormDB)

	clock := calendar.SystemClock

	var locker lock.Locker = lock.NewLocalLock()
	if rdb != nil {
		locker = lock.NewRedisLock(rdb)
	}

	travelSvc := travel.NewService(
		newTravelCache(cfg, gormDB, rdb, clock),
		newTravelRouter(cfg),
		locationRepo,
		cfg.Travel.CacheTTL,
		zlog.Named("travel"),
	)

	availabilitySvc := service.NewAvailabilityService(
		walkerRepo,
		repository.NewGormWorkingHoursRepository(gormDB),
		repository.NewGormBookingRepository(gormDB),
		repository.NewGormBlockRepository(gormDB),
	)
	slotSvc := service.NewSlotService(availabilitySvc, walkerRepo, serviceRepo, locationRepo, travelSvc, clock, service.SlotConfig{
		Granularity:  cfg.Scheduling.SlotGranularity,
		TravelBuffer: cfg.Scheduling.TravelBuffer,
		SafetyMargin: cfg.Scheduling.SafetyMargin,
		Concurrency:  cfg.Scheduling.WalkerConcurrency,
	}, zlog.Named("slots"))
	bookingSvc := service.NewBookingService(gormDB, serviceRepo, locker, cfg.Scheduling.BookingLockTTL, clock, zlog.Named("bookings"))
	blockSvc := service.NewBlockService(gormDB, locker, cfg.Scheduling.BookingLockTTL, zlog.Named("blocks"))
	recurringSvc := service.NewRecurringService(
		walkerRepo,
		repository.NewGormSeriesRepository(gormDB),
		repository.NewGormEventRepository(gormDB),
		bookingSvc,
		blockSvc,
		locker,
		cfg.Scheduling.SeriesLockTTL,
		clock,
		cfg.Scheduling.MaxSeriesOccurrences,
		zlog.Named("recurring"),
	)

	// 5. HTTP server.
	router := httpserver.NewRouter(zlog.Named("http"), httpserver.Services{
		Slots:           slotSvc,
		OpenIntervals:   availabilitySvc,
		Bookings:        bookingSvc,
		Series:          recurringSvc,
		Blocks:          blockSvc,
		RecurringBlocks: recurringSvc,
		DB:              sqlDB,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// 6. gRPC server.
	grpcSrv := grpcapi.NewGRPCServer(zlog.Named("grpc"), grpcapi.NewServer(slotSvc, recurringSvc, zlog.Named("grpc")))
	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		zlog.Fatal("listen grpc", zap.String("addr", cfg.GRPC.Address), zap.Error(err))
	}

	serverErrCh := make(chan error, 2)

	go func() {
		zlog.Info("starting HTTP server", zap.String("addr", cfg.HTTP.Address))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()
	go func() {
		zlog.Info("starting gRPC server", zap.String("addr", cfg.GRPC.Address))
		if err := grpcSrv.Serve(lis); err != nil {
			serverErrCh <- err
		}
	}()

	// 7. Graceful shutdown on signal or server failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zlog.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		zlog.Error("server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		zlog.Error("HTTP shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	zlog.Info("server stopped")
}

func newTravelCache(cfg *config.Config, gormDB *gorm.DB, rdb *redis.Client, clock calendar.Clock) travel.Cache {
	switch cfg.Travel.CacheBackend {
	case "redis":
		return travel.NewRedisCache(rdb, clock)
	case "memory":
		return travel.NewMemoryCache(clock)
	default:
		return travel.NewGormCache(gormDB, clock)
	}
}

func newTravelRouter(cfg *config.Config) travel.Router {
	if cfg.Travel.Router == "http" {
		return travel.NewHTTPRouter(cfg.Travel.RouterURL, cfg.Travel.RouterAPIKey, cfg.Travel.RouterTimeout)
	}
	return travel.NewHaversineRouter(cfg.Travel.AverageSpeedKmh)
}
