package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/retention-registry/internal/console/handler"
	"github.com/xela07ax/retention-registry/internal/console/server"
	"github.com/xela07ax/retention-registry/internal/console/service"
	"github.com/xela07ax/retention-registry/internal/domain/ports"
	"github.com/xela07ax/retention-registry/internal/engine"
	"github.com/xela07ax/retention-registry/internal/infra"
	"github.com/xela07ax/retention-registry/internal/repository"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("retention registry stopped with error", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст жизненного цикла: SIGINT/SIGTERM запускают graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Инфраструктура и ресурсы
	storage, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer storage.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.NewMetrics(reg)

	var publisher ports.ChangePublisher = infra.NopPublisher{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			// Уведомления не критичны: стартуем, предохранитель разберется с недоступным Redis
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		publisher = infra.NewReliablePublisher(infra.NewRedisPublisher(rdb), cfg.Notify, reg, logger)
	}

	// 2. Инициализация слоев (Dependency Injection)
	modelService := service.NewModelService(storage.Models, publisher, metrics, logger)
	policyService := service.NewPolicyService(storage.Policies, publisher, metrics, logger)

	api := server.NewConsoleServer(cfg, logger, reg,
		handler.NewModelHandler(modelService),
		handler.NewPolicyHandler(policyService),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 3. gRPC health: SERVING только пока хранилище отвечает
	healthSrv := health.NewServer()
	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	go watchStorage(ctx, storage, healthSrv, logger)

	errCh := make(chan error, 2)
	if cfg.GRPC.Port > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			return fmt.Errorf("listen gRPC: %w", err)
		}
		go func() {
			logger.Info("gRPC health server started", zap.Int("port", cfg.GRPC.Port))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("serve gRPC: %w", err)
			}
		}()
	}

	go func() {
		logger.Info("retention registry API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	// 4. Graceful Shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		stop()
	}

	healthSrv.Shutdown() // NOT_SERVING для всех сервисов

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP: %w", err)
	}
	grpcSrv.GracefulStop()

	logger.Info("retention registry exited properly")
	return nil
}

// watchStorage периодически пингует хранилище и переключает статус gRPC health.
func watchStorage(ctx context.Context, storage *repository.Storage, hs *health.Server, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := storage.Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("storage ping failed", zap.Error(err))
		}
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
