// Package main implements the CAT Control Container entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/adapter/fake"
	"github.com/cat-control/ccc/internal/adapter/ft817"
	"github.com/cat-control/ccc/internal/api"
	"github.com/cat-control/ccc/internal/audit"
	"github.com/cat-control/ccc/internal/auth"
	"github.com/cat-control/ccc/internal/command"
	"github.com/cat-control/ccc/internal/config"
	"github.com/cat-control/ccc/internal/logging"
	"github.com/cat-control/ccc/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: ccc.yaml if present)")
	useFake := flag.Bool("fake", false, "use the in-memory fake transceiver instead of serial hardware")
	flag.Parse()

	// Step 1: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Step 2: Build the structured logger.
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting CAT Control Container", zap.String("version", api.Version))

	// Step 3: Audit trail.
	auditLogger := audit.NewLogger(cfg.Audit)
	if auditLogger == nil {
		logger.Warn("audit trail disabled: no audit file configured")
	}

	// Step 4: Transceiver adapter.
	var transceiver adapter.ITransceiverAdapter
	if *useFake {
		logger.Info("using fake transceiver adapter")
		transceiver = fake.NewFakeAdapter()
	} else {
		transceiver = ft817.New(ft817.Options{
			Baud:           cfg.Serial.Baud,
			ReadTimeout:    cfg.Serial.ReadTimeout.Std(),
			SettleDelay:    cfg.Serial.SettleDelay.Std(),
			ResponseLength: cfg.Serial.ResponseLength,
		})
	}

	// Step 5: Telemetry hub.
	hub := telemetry.NewHub(telemetry.Options{
		BufferSize:        cfg.Telemetry.EventBufferSize,
		HeartbeatInterval: cfg.Telemetry.HeartbeatInterval.Std(),
		Snapshot: func() map[string]interface{} {
			state := transceiver.State()
			return map[string]interface{}{
				"connected":   state.Connected,
				"port":        state.Port,
				"frequencyHz": state.FrequencyHz,
			}
		},
	})

	// Step 6: Command orchestrator.
	orchestrator := command.NewOrchestrator(transceiver, hub, auditLogger, cfg.Command)

	// Step 7: Auth middleware.
	var middleware *auth.Middleware
	if cfg.Auth.Enabled {
		verifier, err := buildVerifier(cfg.Auth)
		if err != nil {
			logger.Fatal("failed to build token verifier", zap.Error(err))
		}
		middleware = auth.NewMiddleware(verifier)
	} else {
		logger.Warn("auth disabled: API is open to anyone who can reach it")
	}

	// Step 8: Connect at startup when a device is configured. Failure is
	// not fatal; clients can retry over the API.
	if cfg.Serial.Device != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Command.TimeoutConnect.Std())
		if err := orchestrator.Connect(ctx, cfg.Serial.Device); err != nil {
			logger.Warn("initial connect failed",
				zap.String("device", cfg.Serial.Device), zap.Error(err))
		} else {
			logger.Info("connected to transceiver", zap.String("device", cfg.Serial.Device))
		}
		cancel()
	}

	// Step 9: HTTP server.
	server := api.NewServer(orchestrator, hub, middleware)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			serverErr <- err
		}
	}()
	logger.Info("API server listening", zap.String("addr", cfg.API.Addr))

	// Graceful shutdown on signal or server failure.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("error stopping HTTP server", zap.Error(err))
	}
	hub.Stop()
	if err := orchestrator.Disconnect(ctx); err != nil {
		logger.Error("error disconnecting transceiver", zap.Error(err))
	}
	if err := auditLogger.Close(); err != nil {
		logger.Error("error closing audit trail", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildVerifier assembles the token verifier from the auth config.
func buildVerifier(cfg config.AuthConfig) (*auth.Verifier, error) {
	vcfg := auth.VerifierConfig{SecretKey: cfg.HSSecret}
	if cfg.RSPublicKeyFile != "" {
		pemData, err := os.ReadFile(cfg.RSPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key file: %w", err)
		}
		vcfg.PublicKeyPEM = string(pemData)
	}
	return auth.NewVerifier(vcfg)
}
