// Command orchestrator runs the HTTP entry point: POST /route plan/execute
// cycle plus the supplemental ingest-log endpoints. Grounded on the
// teacher's cmd/relay/main.go wiring order (config -> otel -> logger ->
// snowflake -> db -> dependency graph -> gin router -> graceful shutdown).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eyeofterror.app/orchestrator/common/id"
	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/common/logger"
	"eyeofterror.app/orchestrator/common/otel"
	"eyeofterror.app/orchestrator/core/config"
	"eyeofterror.app/orchestrator/core/db"
	"eyeofterror.app/orchestrator/internal/controller"
	"eyeofterror.app/orchestrator/internal/executor"
	"eyeofterror.app/orchestrator/internal/httpapi"
	"eyeofterror.app/orchestrator/internal/httpapi/middleware"
	"eyeofterror.app/orchestrator/internal/ingestqueue"
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/modelrouter"
	"eyeofterror.app/orchestrator/internal/orchestrator"
	"eyeofterror.app/orchestrator/internal/tools"
	"eyeofterror.app/orchestrator/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.Info("otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.Info("otel disabled (no endpoint configured)")
	}

	slog.Info("orchestrator starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	if err := id.Init(1); err != nil {
		slog.Error("failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database connected")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ingestProducer := ingestqueue.NewRedisProducer(redisClient, cfg.Redis.Stream)

	pool := transport.New(transport.DefaultTimeout)

	toolRegistry := tools.New(tools.Dependencies{
		Pool:           pool,
		WarpWailsURL:   cfg.WarpWailsURL,
		DefaultSpeaker: cfg.TTSDefaultSpeaker,
	})

	client7B, err := llm.New(llm.Config{BaseURL: cfg.Models.Base7B, Model: cfg.Models.ControllerModel}, "7b")
	if err != nil {
		slog.Error("failed to build 7b model client", "error", err)
		os.Exit(1)
	}
	client20B, err := llm.New(llm.Config{BaseURL: cfg.Models.Base20B, Model: cfg.Models.ControllerModel}, "20b")
	if err != nil {
		slog.Error("failed to build 20b model client", "error", err)
		os.Exit(1)
	}

	router := modelrouter.New(map[model.TargetModel]llm.Client{
		model.ModelName7B:  client7B,
		model.ModelName20B: client20B,
	})

	controllerClient := controller.New(client7B, cfg.Models.Base7B, "/v1/chat/completions")

	exec := executor.New(toolRegistry, router)
	orch := orchestrator.New(controllerClient, exec)

	handler := httpapi.New(orch, controllerClient, ingestProducer)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ginRouter := setupRouter(cfg, handler)
	server := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: ginRouter,
	}

	go func() {
		slog.Info("http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	if err := ingestProducer.Close(); err != nil {
		slog.Error("ingest producer close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}

func setupRouter(cfg config.Config, handler *httpapi.Handler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span -> Recovery catches panics -> Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httpapi.SetupRoutes(router, handler)

	return router
}
