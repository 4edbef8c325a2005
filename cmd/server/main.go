package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RBarbieri13/Decant-sub001/internal/app"
	"github.com/RBarbieri13/Decant-sub001/internal/handler"
	"github.com/RBarbieri13/Decant-sub001/internal/logging"
	"github.com/RBarbieri13/Decant-sub001/internal/mcp"
	"github.com/RBarbieri13/Decant-sub001/internal/middleware"
	"github.com/RBarbieri13/Decant-sub001/internal/scheduler"
	"github.com/RBarbieri13/Decant-sub001/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		FilePath:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	slog.Info("🚀 Starting Decant",
		"port", cfg.Port,
		"database", cfg.DatabaseDriver,
		"similarity_method", cfg.Similarity.Method,
		"ollama_embed", cfg.OllamaEmbedURL,
		"mcp_enabled", cfg.MCPEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database, engine and services ────────────────────────────────────
	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	jobTracker := handler.NewJobTracker(a.Similarity)

	// ── Fiber App ────────────────────────────────────────────────────────
	fapp := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	fapp.Use(recover.New())
	fapp.Use(fiberlogger.New())
	fapp.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.ActorHeader},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Health check
	fapp.Get("/api/v1/health", func(c fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		if err := a.Store.Ping(c.Context()); err != nil {
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── API Routes ───────────────────────────────────────────────────────
	api := fapp.Group("/api/v1", middleware.Actor(middleware.ActorConfig{
		Secret:       cfg.JWTSecret,
		Issuer:       cfg.JWTIssuer,
		RequireToken: cfg.JWTRequireToken,
	}), middleware.RequestAudit())

	handler.NewNodeHandler(a.Hierarchy, a.Audit, a.Relations).Register(api)
	handler.NewAuditHandler(a.Audit).Register(api)
	handler.NewSimilarityHandler(a.Similarity).Register(api)
	handler.NewJobsHandler(jobTracker).Register(api)

	// ── Periodic recompute ───────────────────────────────────────────────
	if cfg.RecomputeInterval > 0 {
		sch, err := scheduler.New(a.Similarity, cfg.RecomputeInterval, cfg.Similarity.Method)
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sch.Start()
		defer func() {
			if err := sch.Stop(); err != nil {
				slog.Warn("scheduler stop", "error", err)
			}
		}()
		slog.Info("⏱ periodic recompute enabled", "interval", cfg.RecomputeInterval)
	}

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer, err := mcp.NewServer(mcp.Services{Audit: a.Audit, Relations: a.Relations})
		if err != nil {
			slog.Error("failed to create MCP server", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := mcpServer.RunHTTP(ctx, ":"+cfg.MCPPort); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Shutdown ─────────────────────────────────────────────────────────
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := jobTracker.Shutdown(shutdownCtx); err != nil {
			slog.Warn("recompute jobs did not stop in time", "error", err)
		}
		if err := fapp.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Warn("fiber shutdown", "error", err)
		}
	}()

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := fapp.Listen(":"+cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
