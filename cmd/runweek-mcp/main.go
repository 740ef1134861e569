package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/claude/runweek/internal/config"
	runweekmcp "github.com/claude/runweek/internal/mcp"
	"github.com/claude/runweek/internal/storage"
	"github.com/claude/runweek/internal/swap"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to server config file (local database mode)")
	remoteURL := flag.String("remote", "", "talk to a running runweek server instead of the database")
	apiKey := flag.String("api-key", "", "API key for -remote (default: $RUNWEEK_API_KEY)")
	policyName := flag.String("swap-policy", "", "swap policy for -remote mode: same-kind or any-kind")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("runweek-mcp", Version)
		return
	}

	// stdout carries the protocol; logs go to stderr.
	var (
		ds     runweekmcp.DataSource
		policy swap.Policy
		log    *slog.Logger
	)

	if *remoteURL != "" {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		key := *apiKey
		if key == "" {
			key = os.Getenv("RUNWEEK_API_KEY")
		}
		p, err := swap.ParsePolicy(*policyName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -swap-policy: %v\n", err)
			os.Exit(1)
		}
		policy = p
		ds = runweekmcp.NewHTTPClient(strings.TrimRight(*remoteURL, "/"), key)
		log.Info("mcp using remote server", "url", *remoteURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log = cfg.Log.Logger(os.Stderr)
		policy = cfg.Engine.Policy()

		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
		log.Info("mcp using local database", "host", cfg.Database.Host, "name", cfg.Database.Name)
	}

	mcpSrv := runweekmcp.New(ds, policy, Version, log)
	if err := server.ServeStdio(mcpSrv); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
