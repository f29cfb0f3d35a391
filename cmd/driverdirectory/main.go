package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/config"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/driver"
	"github.com/A1taxi-Hosur/cust-app-sub001/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("driver-directory")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "driver-directory")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := config.LoadDriverDirectory()

	registry := driver.NewRegistry()
	if cfg.SeedDemo {
		registry.SeedDemoFleet()
	}

	grpcSrv := grpc.NewServer()
	driver.RegisterDriverDirectoryServer(grpcSrv, driver.NewServer(registry))

	go runOps(logger, cfg.HTTPAddr)
	go runGRPC(logger, grpcSrv, cfg.GRPCAddr)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	grpcSrv.GracefulStop()
}

// runOps serves health and metrics for the directory process.
func runOps(logger *zap.Logger, addr string) {
	r := chi.NewRouter()
	r.Mount("/", observability.MetricsRouter())

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("directory ops listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ops server", zap.Error(err))
	}
}

func runGRPC(logger *zap.Logger, srv *grpc.Server, addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	logger.Info("directory grpc listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("grpc serve", zap.Error(err))
	}
}
