package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/lukas-hzb/verve/internal/config"
	"github.com/lukas-hzb/verve/internal/gitsource"
	"github.com/lukas-hzb/verve/internal/storage"
	"github.com/lukas-hzb/verve/internal/sync"
	"github.com/lukas-hzb/verve/internal/web"
	flag "github.com/spf13/pflag"
)

func main() {
	flags := config.Flags()
	addSource := flags.String("add-source", "", "Register an import source (path or git URL) and exit")
	runSync := flags.Bool("sync", false, "Reconcile all import sources and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	if *addSource != "" {
		sourceType := "local"
		if gitsource.IsGitURL(*addSource) {
			sourceType = "git"
		}
		id, err := db.InsertSource(*addSource, sourceType)
		if err != nil {
			slog.Error("failed to add source", "path", *addSource, "error", err)
			os.Exit(1)
		}
		slog.Info("source registered", "id", id, "type", sourceType, "path", *addSource)
		return
	}

	if *runSync {
		res, err := sync.RunSync(context.Background(), db, cfg.ReposDir)
		if err != nil {
			slog.Error("sync failed", "error", err)
			os.Exit(1)
		}
		if len(res.Errors) > 0 {
			for _, e := range res.Errors {
				slog.Warn("sync problem", "detail", e)
			}
		}
		return
	}

	server := web.NewServer(db, cfg.ReposDir)
	slog.Info("listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
