package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/antoniostano/secretary/internal/assistant"
	"github.com/antoniostano/secretary/internal/brain"
	"github.com/antoniostano/secretary/internal/config"
	"github.com/antoniostano/secretary/internal/extraction"
	"github.com/antoniostano/secretary/internal/httpapi"
	"github.com/antoniostano/secretary/internal/memory"
	"github.com/antoniostano/secretary/internal/observability"
	"github.com/antoniostano/secretary/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer store.Close()

	backend, err := brain.NewBackend(brain.Config{
		Mode:      cfg.BrainMode,
		OllamaURL: cfg.OllamaURL,
		Model:     cfg.OllamaModel,
		Timeout:   cfg.BrainTimeout,
	})
	if err != nil {
		log.Fatalf("brain backend init failed: %v", err)
	}
	log.Printf("brain backend: mode=%s model=%s", cfg.BrainMode, cfg.OllamaModel)

	sessions := session.NewManager(cfg.SessionIdleTimeout, cfg.ResetTriggerPhrase)
	pipeline := extraction.NewPipeline(backend, store, metrics)
	orchestrator := assistant.New(sessions, store, backend, pipeline, metrics, cfg.MemoryContextLimit)

	api := httpapi.New(cfg, orchestrator, store, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	// Let in-flight extraction cycles land in the store before exit.
	orchestrator.Wait()

	log.Printf("shutdown complete")
}
