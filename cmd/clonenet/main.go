// clonenet worker server — runs one clone of the network: a specialist
// (analyzer, architect, tester, communicator) or the Omega coordinator,
// selected by role.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/omegalab/clonenet/pkg/api"
	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/clone"
	"github.com/omegalab/clonenet/pkg/config"
	"github.com/omegalab/clonenet/pkg/coordinator"
	"github.com/omegalab/clonenet/pkg/evidence"
	"github.com/omegalab/clonenet/pkg/integrity"
	"github.com/omegalab/clonenet/pkg/llm"
	"github.com/omegalab/clonenet/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	roleFlag := flag.String("role", getEnv("CLONE_ROLE", clone.IDOmega),
		"Clone role to run (omega, beta, gamma, delta, sigma)")
	settingsFlag := flag.String("config", "", "Path to optional YAML settings file")
	flag.Parse()

	// Load .env before anything reads the environment.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	slog.Info("Starting clonenet worker",
		"role", *roleFlag,
		"version", version.Full())

	// 1. Configuration
	cfg, err := config.Load(*roleFlag, *settingsFlag)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	role, err := clone.RoleByID(cfg.Role)
	if err != nil {
		slog.Error("Failed to resolve role", "error", err)
		os.Exit(1)
	}

	// 2. LLM backend
	var backend llm.Backend
	if cfg.LLM.TestMode {
		backend = llm.NewTestBackend(cfg.LLM.Model)
		slog.Warn("Running with the offline test backend", "model", backend.Model())
	} else {
		backend, err = llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout(),
		})
		if err != nil {
			slog.Error("Failed to construct LLM backend", "error", err)
			os.Exit(1)
		}
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("Error closing LLM backend", "error", err)
		}
	}()

	// 3. Evidence recorder and artifact store
	recorder := evidence.NewRecorder(cfg.AuditDir(), cfg.AuditRetentionDays)
	checker := integrity.NewChecker()
	store, err := artifact.NewStore(cfg.WorkspaceRoot, checker, recorder, role.ID)
	if err != nil {
		slog.Error("Failed to initialize artifact store", "workspace", cfg.WorkspaceRoot, "error", err)
		os.Exit(1)
	}
	slog.Info("Artifact store initialized", "workspace", cfg.WorkspaceRoot)

	// 4. Clone runtime, plus the coordinator capability set for omega
	worker := clone.New(role, checker, recorder, backend, store, version.Full())

	var coord *coordinator.Coordinator
	if role.ID == clone.IDOmega {
		registry := coordinator.NewRegistry(cfg.PeerHost)
		for id, baseURL := range cfg.Peers {
			registry.Register(id, baseURL, "")
		}
		coord = coordinator.New(worker, registry)
		slog.Info("Coordinator registry seeded", "peers", len(registry.Peers()))
	}

	// 5. HTTP server (non-blocking)
	server := api.NewServer(worker, coord)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port, "role", role.Name)
		if err := server.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Clone started",
		"clone", role.ID,
		"role", role.Name,
		"specialization", role.Specialization)

	// 6. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 7. Graceful shutdown with a bounded drain window
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete", "clone", role.ID)
}
