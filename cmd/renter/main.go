package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"rentmesh/internal/adapters/ledger"
	"rentmesh/internal/adapters/store"
	"rentmesh/internal/adapters/transport"
	"rentmesh/internal/app"
	"rentmesh/internal/clients"
	"rentmesh/internal/config"
	"rentmesh/internal/logging"
	"rentmesh/internal/protocol"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Agent.RegistryAddr == "" {
		log.Fatal().Msg("REGISTRY_ADDR is required for a renter agent")
	}
	if cfg.Agent.SchedulerAddr == "" {
		log.Fatal().Msg("SCHEDULER_ADDR is required for a renter agent")
	}

	logging.Init(cfg)

	log.Info().Msg("Starting renter agent...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.Agent.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}
	agentStore, err := store.Open(filepath.Join(cfg.Agent.DataDir, cfg.Agent.Name+".db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open agent store")
	}
	defer agentStore.Close()

	log.Info().Msg("Agent store opened")

	walletLedger, err := ledger.Open(cfg.Agent.LedgerPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer walletLedger.Close()

	log.Info().Str("path", cfg.Agent.LedgerPath).Msg("Ledger opened")

	client := transport.NewClient(transport.ClientParams{
		Address: cfg.AdvertisedAddress(),
		Timeout: cfg.Messaging.RequestTimeout,
		Logger:  log.Logger,
	})
	defer client.Close()

	registry := clients.NewRegistryClient(client, cfg.Agent.RegistryAddr)
	scheduler := clients.NewSchedulerClient(client, cfg.Agent.SchedulerAddr)
	owners := clients.NewOwnerClient(client)

	renterService, err := app.NewRenterService(app.RenterServiceParams{
		Store:    agentStore,
		Owners:   owners,
		Payments: scheduler,
		Registry: registry,
		Ledger:   walletLedger,
		Address:  cfg.AdvertisedAddress(),
		User: protocol.UserRecord{
			Name:  cfg.User.Name,
			Phone: cfg.User.Phone,
			Email: cfg.User.Email,
		},
		Logger: log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create renter service")
	}

	server := transport.NewServer(transport.ServerParams{
		ListenAddr:      cfg.ListenAddr(),
		Address:         cfg.AdvertisedAddress(),
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		MaxWorkers:      config.WSMaxWorkers,
		MaxCapacity:     config.WSMaxCapacity,
		Logger:          log.Logger,
	})
	renterService.RegisterHandlers(server)
	renterService.RegisterRoutes(server)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting transport server")
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start transport server")
			cancel()
		}
	}()

	go func() {
		regCtx, regCancel := context.WithTimeout(ctx, cfg.Messaging.RequestTimeout)
		defer regCancel()
		if err := renterService.Register(regCtx); err != nil {
			log.Warn().Err(err).Msg("User not registered at startup; retry via /admin/register")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping transport server")
	}

	log.Info().Msg("Graceful shutdown completed")
}
