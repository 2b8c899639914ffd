// clonenet-bridge — exposes the clone network to an IDE as a tool catalogue
// over line-delimited JSON on stdin/stdout. Logs go to stderr; stdout carries
// protocol lines only.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/omegalab/clonenet/pkg/bridge"
	"github.com/omegalab/clonenet/pkg/clone"
	"github.com/omegalab/clonenet/pkg/version"
)

// endpoints resolves every clone's base URL: role defaults on
// CLONE_PEER_HOST (default localhost), overridden by CLONE_PEERS id=url
// pairs.
func endpoints() map[string]string {
	host := os.Getenv("CLONE_PEER_HOST")
	if host == "" {
		host = "localhost"
	}

	out := make(map[string]string)
	for _, role := range clone.Roles() {
		out[role.ID] = fmt.Sprintf("http://%s:%d", host, role.DefaultPort)
	}

	for _, pair := range strings.Split(os.Getenv("CLONE_PEERS"), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, url, ok := strings.Cut(pair, "=")
		if !ok {
			slog.Warn("Ignoring malformed peer entry", "entry", pair)
			continue
		}
		out[strings.TrimSpace(id)] = strings.TrimRight(strings.TrimSpace(url), "/")
	}
	return out
}

func main() {
	// stdout belongs to the protocol; all logging goes to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	slog.Info("Starting clonenet tool bridge",
		"version", version.Full(),
		"tools", strings.Join(bridge.ToolNames(), ", "))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	b := bridge.New(endpoints(), os.Stdin, os.Stdout)
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Bridge loop failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Bridge stopped")
}
