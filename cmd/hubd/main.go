package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"mcphub/internal/audit"
	"mcphub/internal/config"
	"mcphub/internal/hub"
	"mcphub/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, logCleanup := setupLogger(cfg)
	defer logCleanup()
	slog.SetDefault(logger)

	serverConfigs := make([]hub.ServerConfig, 0, len(cfg.Servers))
	for name, sc := range cfg.Servers {
		serverConfigs = append(serverConfigs, hub.ServerConfig{
			Name: name, Command: sc.Command, Args: sc.Args, Env: sc.Env,
		})
	}

	h := hub.Singleton(func() *hub.Hub {
		return hub.New(serverConfigs, logger)
	})

	h.OnStatusChange(func(name string, snap hub.ConnectionSnapshot) {
		metrics.ConnectionStatus.WithLabelValues(name).Set(metrics.StatusGaugeValue(string(snap.Status)))
	})

	if cfg.Audit.Driver == "sqlite" {
		store, err := audit.NewSQLiteStore(cfg.Audit.DSN)
		if err != nil {
			slog.Error("init audit store failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		h.AttachAuditStore(audit.NewSink(store, func() string { return uuid.NewString() }))
	} else if cfg.Audit.Driver != "" {
		slog.Warn("unknown audit driver", "driver", cfg.Audit.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Hub.ConnectTimeout*time.Duration(len(serverConfigs)+1))
	if err := h.Initialize(ctx); err != nil {
		slog.Error("hub initialize failed", "error", err)
	}
	cancel()

	// The Tool Executor (C6) and Composition Executor (C7) are embedded as
	// Go APIs by whatever out-of-scope agent process calls into this hub
	// (§1) — this entrypoint only owns the Hub's own process lifecycle:
	// connections, health, and metrics.

	mux := http.NewServeMux()

	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		for _, snap := range h.ListConnections() {
			if snap.Status == hub.StatusConnected {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("Ready"))
				return
			}
		}
		http.Error(w, "no server connected", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":8080",
		Handler: mux,
	}

	go func() {
		slog.Info("hubd starting", "addr", server.Addr, "servers", len(serverConfigs))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server start failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("hubd stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown forced", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := h.Shutdown(drainCtx); err != nil {
		slog.Error("hub shutdown error", "error", err)
	}

	slog.Info("hubd stopped")
}

// setupLogger mirrors the teacher's cmd/server setupLogger: multi-output
// writer (stdout/stderr/rotating file), text or JSON handler.
func setupLogger(cfg *config.Config) (*slog.Logger, func()) {
	var writers []io.Writer
	var closers []io.Closer

	for _, output := range strings.Split(cfg.Log.Output, ",") {
		output = strings.TrimSpace(output)
		if output == "" {
			continue
		}
		var w io.Writer
		switch output {
		case "stderr":
			w = os.Stderr
		case "stdout":
			w = os.Stdout
		default:
			l := &lumberjack.Logger{
				Filename:   output,
				MaxSize:    cfg.Log.Rotation.MaxSize,
				MaxBackups: cfg.Log.Rotation.MaxBackups,
				MaxAge:     cfg.Log.Rotation.MaxAge,
				Compress:   cfg.Log.Rotation.Compress,
			}
			w = l
			closers = append(closers, l)
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	opts := &slog.HandlerOptions{Level: cfg.GetLogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(io.MultiWriter(writers...), opts)
	} else {
		handler = slog.NewTextHandler(io.MultiWriter(writers...), opts)
	}

	return slog.New(handler), func() {
		for _, c := range closers {
			c.Close()
		}
	}
}
