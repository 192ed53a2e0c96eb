package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/bootstrap"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/camunda"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/observability"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/pkg/registry"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	delay := initialDelay
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = operation(); err == nil {
			return nil
		}
		log.Warn("Operation failed, retrying", map[string]interface{}{
			"operation": operationName,
			"attempt":   attempt,
			"error":     err.Error(),
			"delay":     delay.String(),
		})
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "console").Error("config load failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting review worker", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()
	camunda.SetObserver(obs)

	reg, err := registry.Default()
	if err == nil {
		err = reg.Validate()
	}
	if err != nil {
		log.Error("activity registry is invalid", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	ctx := context.Background()

	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	err = retryWithBackoff(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return app.Ready(pingCtx)
	}, 15, 2*time.Second, log, "dependency readiness")
	if err != nil {
		log.Error("dependencies unavailable after retries", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFromApp(cfg.Camunda))
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		log.Error("zeebe client failed after retries", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer zeebe.Close()

	workers, err := bootstrap.NewWorkers(bootstrap.WorkerDeps{
		AppConfig: cfg,
		Camunda:   zeebe,
		Registry:  reg,
		Service:   app.Service,
		Logger:    log,
	})
	if err != nil {
		log.Error("worker construction failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	started := 0
	for _, w := range workers {
		if err := w.Register(); err != nil {
			log.Error("worker registration failed", map[string]interface{}{"taskType": w.GetTaskType(), "error": err.Error()})
			os.Exit(1)
		}
		if w.IsEnabled() {
			started++
		}
	}
	log.Info("Workers registered", map[string]interface{}{"started": started, "total": len(workers)})

	srv := &http.Server{
		Addr:              cfg.Observability.HTTPAddress,
		Handler:           newRouter(app, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutdown signal received, stopping workers...", nil)

	for _, w := range workers {
		w.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("health server shutdown", map[string]interface{}{"error": err.Error()})
	}
	log.Info("All workers stopped", nil)
}

type readiness interface {
	Ready(ctx context.Context) error
}

type brokerHealth interface {
	HealthCheck(ctx context.Context) error
}

func newRouter(deps readiness, broker brokerHealth) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok", nil)
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := deps.Ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
		if err := broker.HealthCheck(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{"status": status}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
