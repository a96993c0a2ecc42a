package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/hemolens/hemolens/internal/adapters/duckdb"
	"github.com/hemolens/hemolens/internal/adapters/pdf"
	"github.com/hemolens/hemolens/internal/adapters/providers"
	"github.com/hemolens/hemolens/internal/config"
	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/services"
	"github.com/hemolens/hemolens/pkg/kernel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting hemolens kernel")

	if err := run(logger); err != nil {
		logger.Error("kernel startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo, err := duckdb.NewRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init repository: %w", err)
	}
	defer repo.Close()

	engine, err := providers.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build analysis engine: %w", err)
	}

	reader := pdf.NewReader(cfg.PdftotextPath)

	// Tool Registry - register available tools
	toolRegistry := domain.NewToolRegistry()
	for _, tool := range []*domain.Tool{
		services.NewReadBloodReportTool(reader),
		services.NewReferenceLookupTool(),
		services.NewNutritionRulesTool(),
		services.NewExerciseRulesTool(),
	} {
		if err := toolRegistry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool: %w", err)
		}
	}
	logger.Info("analysis tools registered", "count", len(toolRegistry.ListTools()))

	pipeline := services.NewAnalysisPipeline(
		logger, engine, toolRegistry,
		domain.BuiltinSpecialists(), domain.AnalysisStages(),
	)
	orchestrator := services.NewOrchestrator(logger, repo, pipeline)

	apiServer := kernel.NewServer(logger, repo, orchestrator, cfg.DataDir)

	// CORS Configuration. The upload form may be served from anywhere.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: c.Handler(apiServer.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting api server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
