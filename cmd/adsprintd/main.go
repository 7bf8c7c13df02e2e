// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/app"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/log"
)

var (
	configPath  = flag.String("config", "", "Path to a YAML config file")
	showVersion = flag.Bool("version", false, "Print version and exit")

	// Version info
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("adsprintd %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(cfg.App.LogLevel, cfg.App.Env == "development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := NewDaemon(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create daemon", zap.Error(err))
		os.Exit(1)
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start daemon", zap.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("daemon stopped")
}

// Daemon serves the public API, the ops endpoints and, without Redis, the
// in-process job loop.
type Daemon struct {
	cfg *config.Config
	app *app.App
	log log.Logger

	apiServer *http.Server
	opsServer *http.Server

	loopCancel context.CancelFunc
	loopDone   sync.WaitGroup
	started    time.Time
}

func NewDaemon(ctx context.Context, cfg *config.Config, logger log.Logger) (*Daemon, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Daemon{cfg: cfg, app: a, log: logger}, nil
}

func (d *Daemon) Start(ctx context.Context) error {
	d.started = time.Now()

	api := d.app.API()
	d.apiServer = &http.Server{
		Addr:         d.cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  d.cfg.HTTP.ReadTimeout,
		WriteTimeout: d.cfg.HTTP.WriteTimeout,
	}
	d.apiServer.RegisterOnShutdown(api.Close)
	d.opsServer = &http.Server{
		Addr:    d.cfg.HTTP.OpsAddr,
		Handler: d.setupOpsRoutes(),
	}

	for name, srv := range map[string]*http.Server{"api": d.apiServer, "ops": d.opsServer} {
		go func(name string, srv *http.Server) {
			d.log.Info("http server listening", zap.String("server", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Error("http server error", zap.String("server", name), zap.Error(err))
			}
		}(name, srv)
	}

	if d.app.AsynqEnabled() {
		d.log.Info("periodic jobs run in adsprint-worker")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.loopCancel = cancel
	d.loopDone.Add(1)
	go func() {
		defer d.loopDone.Done()
		d.app.Loop().Run(loopCtx)
	}()
	return nil
}

// Shutdown drains both servers, stops the job loop and closes the stores.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var errList []error
	if d.apiServer != nil {
		if err := d.apiServer.Shutdown(ctx); err != nil {
			errList = append(errList, fmt.Errorf("api server: %w", err))
		}
	}
	if d.opsServer != nil {
		if err := d.opsServer.Shutdown(ctx); err != nil {
			errList = append(errList, fmt.Errorf("ops server: %w", err))
		}
	}
	if d.loopCancel != nil {
		d.loopCancel()
		d.loopDone.Wait()
	}
	if err := d.app.Close(); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

// setupOpsRoutes serves health, readiness, build info and Prometheus
// metrics. The gorm plugin registers on the default registry, so both are
// gathered.
func (d *Daemon) setupOpsRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", d.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", d.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/info", d.handleInfo).Methods(http.MethodGet)

	gatherers := prometheus.Gatherers{d.app.Registry, prometheus.DefaultGatherer}
	r.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (d *Daemon) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := d.app.Ready(ctx); err != nil {
		d.log.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (d *Daemon) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   Version,
		"commit":    GitCommit,
		"built":     BuildTime,
		"env":       d.cfg.App.Env,
		"database":  d.app.Backend.Driver,
		"asynq":     d.app.AsynqEnabled(),
		"timezone":  d.cfg.Location().String(),
		"uptime":    time.Since(d.started).Round(time.Second).String(),
		"serverNow": d.app.Clock.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
