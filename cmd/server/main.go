package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/tokendrop-backend/internal/adapter/export"
	grpcadapter "github.com/simaogato/tokendrop-backend/internal/adapter/grpc"
	"github.com/simaogato/tokendrop-backend/internal/adapter/ledger/simulated"
	"github.com/simaogato/tokendrop-backend/internal/adapter/metrics"
	"github.com/simaogato/tokendrop-backend/internal/adapter/repository/memory"
	"github.com/simaogato/tokendrop-backend/internal/config"
	"github.com/simaogato/tokendrop-backend/internal/domain"
	"github.com/simaogato/tokendrop-backend/internal/logging"
	"github.com/simaogato/tokendrop-backend/internal/usecase/airdrop"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tokendrop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load(os.Getenv("TOKENDROP_CONFIG"))
	if err != nil {
		return err
	}

	logger, _, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: logging.Format(cfg.Logging.Format)})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 2. Collaborators: simulated ledger, operator session, in-memory repositories
	ledger := simulated.NewLedger(ledgerConfig(cfg), logger)
	sessions := simulated.NewSessionProvider(cfg.OperatorSession())
	unsubscribe := sessions.Subscribe(func(s domain.Session) {
		logger.Info("operator session changed",
			zap.String("account", s.Account),
			zap.Int64("chain_id", s.ChainID),
		)
	})
	defer unsubscribe()

	telemetry := metrics.New(cfg.Metrics.Namespace)

	deps := airdrop.Dependencies{
		Uploads:   memory.NewUploadRepository(),
		Runs:      memory.NewRunRepository(),
		Ledger:    ledger,
		Sessions:  sessions,
		Recorder:  telemetry,
		Telemetry: telemetry,
	}
	if cfg.Export.BucketURL != "" {
		store, err := export.NewBlobStore(ctx, cfg.Export.BucketURL, cfg.Export.Prefix)
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Publisher = store
		logger.Info("clean list publishing enabled", zap.String("bucket", cfg.Export.BucketURL))
	}

	// 3. Use cases
	service := airdrop.NewService(deps, airdrop.Settings{
		Limits:              cfg.Limits(),
		Debounce:            cfg.DebounceWindow(),
		Policy:              cfg.Policy(),
		CostBuffer:          cfg.CostBuffer(),
		EstimateConcurrency: cfg.Batch.EstimateConcurrency,
	}, logger)

	// 4. Metrics endpoint
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           telemetry.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// 5. gRPC server
	healthServer := health.NewServer()
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.MetricsInterceptor(telemetry),
			grpcadapter.AuthInterceptor(cfg.Server.APIToken,
				"/grpc.health.v1.Health/Check",
				"/grpc.health.v1.Health/List",
			),
		),
	)
	grpcadapter.RegisterAirdropServiceServer(grpcServer, grpcadapter.NewServer(service))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcadapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Server.Reflection {
		reflection.Register(grpcServer)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPCAddress, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("address", cfg.Server.GRPCAddress))
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("gRPC server stopped unexpectedly", zap.Error(err))
	}

	shutdown(cfg.ShutdownTimeout(), logger, healthServer, grpcServer, service, metricsServer)
	return nil
}

// shutdown drains requests, cancels active runs and stops the metrics endpoint
func shutdown(timeout time.Duration, logger *zap.Logger, healthServer *health.Server, grpcServer *grpclib.Server, service *airdrop.Service, metricsServer *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
	}
	logger.Info("gRPC server stopped")

	if active := service.ActiveRuns(); len(active) > 0 {
		logger.Warn("cancelling active runs", zap.Int("count", len(active)))
	}
	if err := service.Shutdown(ctx); err != nil {
		logger.Error("runs did not settle before the shutdown deadline", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}
}

func ledgerConfig(cfg config.Config) simulated.Config {
	ledger := simulated.DefaultConfig()
	ledger.GasPerTransfer = cfg.Ledger.GasPerTransfer
	ledger.Latency = time.Duration(cfg.Ledger.LatencyMs) * time.Millisecond
	ledger.FailureRate = cfg.Ledger.FailureRate
	ledger.FeeRate = decimal.RequireFromString(cfg.Ledger.FeeRate)
	ledger.TokenBalance = decimal.RequireFromString(cfg.Ledger.TokenBalance)
	ledger.NativeBalance = decimal.RequireFromString(cfg.Ledger.NativeBalance)
	return ledger
}
