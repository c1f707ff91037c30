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

	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/logging"
	"github.com/benomayebu/Farmily-Docs/internal/services"
)

func main() {
	log := logging.New(logging.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Console: os.Getenv("LOG_FORMAT") == "console",
		Out:     os.Stderr,
	})
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load configuration from environment variables
	config, err := services.LoadConfig(os.Getenv)
	if err != nil {
		return err
	}
	httpPort := getEnvOrDefault("HTTP_PORT", "8080")
	grpcPort := getEnvOrDefault("GRPC_PORT", "9090")

	log.Info().
		Str("rpc", config.RPCURL).
		Str("contract", config.ContractAddress).
		Str("backend", config.BackendURL).
		Str("spanner", config.SpannerDB).
		Bool("relay", config.NATSURL != "").
		Msg("starting farmily gateway")

	// 2. Initialize service dependencies (DI container)
	svc, err := services.NewServiceOptions(ctx, config, log)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer svc.Close()

	// 3. Background workers
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	// 4. gRPC health endpoint
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		log.Info().Str("port", grpcPort).Msg("gRPC health listening")
		if err := svc.Health.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// 5. HTTP gateway; requests may wait a full receipt timeout
	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           svc.Gateway(config.ReceiptTimeout + time.Minute),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", httpPort).Msg("HTTP gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			stop()
		}
	}()

	// 6. Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
