package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"rentmesh/internal/adapters/store"
	"rentmesh/internal/adapters/transport"
	"rentmesh/internal/app"
	"rentmesh/internal/config"
	"rentmesh/internal/logging"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(cfg)

	log.Info().Msg("Starting directory agent...")

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

	directoryService, err := app.NewDirectoryService(app.DirectoryServiceParams{
		Store:  agentStore,
		Logger: log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create directory service")
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
	directoryService.RegisterHandlers(server)
	directoryService.RegisterRoutes(server)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting transport server")
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start transport server")
			cancel()
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
