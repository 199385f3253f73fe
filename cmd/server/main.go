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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/minutedhq/minuted/common/llm"
	"github.com/minutedhq/minuted/common/logger"
	"github.com/minutedhq/minuted/common/otel"
	"github.com/minutedhq/minuted/core/config"
	"github.com/minutedhq/minuted/internal/agent"
	"github.com/minutedhq/minuted/internal/http/handler"
	"github.com/minutedhq/minuted/internal/http/middleware"
	httprouter "github.com/minutedhq/minuted/internal/http/router"
	"github.com/minutedhq/minuted/internal/mail"
	"github.com/minutedhq/minuted/internal/pipeline"
	"github.com/minutedhq/minuted/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "minuted starting",
		"env", cfg.Env,
		"provider", cfg.Agent.Provider,
		"model", cfg.Agent.Model)

	agentClient, err := llm.NewAgentClient(llm.Config{
		Provider: cfg.Agent.Provider,
		APIKey:   cfg.Agent.APIKey,
		BaseURL:  cfg.Agent.BaseURL,
		Model:    cfg.Agent.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	jobs := store.NewMemoryJobStore()
	agents := agent.NewSet(cfg.Agent.Model, mail.NewLogSender())
	runner := agent.NewRunner(agentClient, cfg.Agent.MaxTokens)
	pipe := pipeline.New(runner, jobs, agents, cfg.Email)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, handler.NewJobHandler(jobs, pipe))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// In-flight jobs are abandoned here; their records stay "started".
	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, jobHandler *handler.JobHandler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, jobHandler)

	return router
}

const banner = `
███╗   ███╗██╗███╗   ██╗██╗   ██╗████████╗███████╗██████╗
████╗ ████║██║████╗  ██║██║   ██║╚══██╔══╝██╔════╝██╔══██╗
██╔████╔██║██║██╔██╗ ██║██║   ██║   ██║   █████╗  ██║  ██║
██║╚██╔╝██║██║██║╚██╗██║██║   ██║   ██║   ██╔══╝  ██║  ██║
██║ ╚═╝ ██║██║██║ ╚████║╚██████╔╝   ██║   ███████╗██████╔╝
╚═╝     ╚═╝╚═╝╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚══════╝╚═════╝
`
