package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AlexxNica/web-page-replay/internal/api"
	"github.com/AlexxNica/web-page-replay/internal/cachemiss"
	"github.com/AlexxNica/web-page-replay/internal/config"
	"github.com/AlexxNica/web-page-replay/internal/dnscache"
	"github.com/AlexxNica/web-page-replay/internal/fetch"
	"github.com/AlexxNica/web-page-replay/internal/httparchive"
	"github.com/AlexxNica/web-page-replay/internal/proxy"
)

func main() {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		slog.Debug("log directory creation failed", "error", err)
	}

	logWriter := &lumberjack.Logger{
		Filename:   "logs/replayd.log",
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting web page replay daemon")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Configuration loaded",
		"record_mode", cfg.RecordMode,
		"archive", cfg.ArchiveFile,
		"listen_addr", cfg.ListenAddr,
		"api_addr", cfg.APIAddr,
		"inject_script", cfg.InjectScript,
		"use_closest_match", cfg.UseClosestMatch,
		"diff_unknown_requests", cfg.DiffUnknownRequests,
	)

	archive := httparchive.New()
	if _, err := os.Stat(cfg.ArchiveFile); err == nil {
		archive, err = httparchive.Load(cfg.ArchiveFile)
		if err != nil {
			slog.Error("Failed to load archive", "path", cfg.ArchiveFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Archive loaded", "path", cfg.ArchiveFile, "entries", archive.Len())
	} else if !cfg.RecordMode {
		slog.Error("Replay mode requires an existing archive", "path", cfg.ArchiveFile)
		os.Exit(1)
	}

	misses := cachemiss.New()
	resolver := dnscache.New()

	record := fetch.NewRecordFetch(archive, resolver.Lookup, cfg.InjectScript, misses)
	replay := fetch.NewReplayFetch(archive, cfg.UseClosestMatch, cfg.DiffUnknownRequests, misses)
	controllable := fetch.NewControllableFetch(record, replay, cfg.RecordMode)

	proxySrv := proxy.New(cfg.ListenAddr, controllable)
	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: api.NewHandler(controllable, archive, misses)}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := proxySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Proxy server failed", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()
	go func() {
		slog.Info("control api listening", "addr", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	<-sigCh
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := proxySrv.Shutdown(ctx); err != nil {
		slog.Warn("Proxy shutdown failed", "error", err)
	}
	if err := apiSrv.Shutdown(ctx); err != nil {
		slog.Warn("API shutdown failed", "error", err)
	}

	if cfg.RecordMode {
		if err := archive.Save(cfg.ArchiveFile); err != nil {
			slog.Error("Failed to save archive", "path", cfg.ArchiveFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Archive saved", "path", cfg.ArchiveFile, "entries", archive.Len())
	}
	if cfg.CacheMissFile != "" {
		if err := misses.Save(cfg.CacheMissFile); err != nil {
			slog.Warn("Failed to save cache-miss stats", "path", cfg.CacheMissFile, "error", err)
		}
	}

	stats := misses.Snapshot()
	slog.Info("Session stats",
		"requests", stats.Total,
		"record_misses", stats.RecordMisses,
		"replay_misses", stats.ReplayMisses,
	)
	slog.Info("Replay daemon stopped")
}
