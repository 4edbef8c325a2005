// Package app wires the store, similarity engine and services from config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RBarbieri13/Decant-sub001/internal/adapter/ai"
	"github.com/RBarbieri13/Decant-sub001/internal/adapter/similarity"
	"github.com/RBarbieri13/Decant-sub001/internal/adapter/store"
	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
	"github.com/RBarbieri13/Decant-sub001/pkg/config"
)

// App holds the long-lived components shared by the server and the CLI.
type App struct {
	Config     *config.Config
	Store      *store.Store
	Engine     *port.SimilarityEngine
	Audit      *service.AuditService
	Hierarchy  *service.HierarchyService
	Similarity *service.SimilarityService
	Relations  *service.RelationService
}

// Build opens the store and assembles the services. Migrations run when
// cfg.AutoMigrate is set.
func Build(ctx context.Context, cfg *config.Config, opts ...store.Option) (*App, error) {
	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("database connected", "driver", st.Driver(), "dsn", cfg.DSN())

	if cfg.AutoMigrate {
		version, err := st.Migrate(ctx)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("schema ready", "version", version)
	}

	engine := NewEngine(cfg)
	audit := service.NewAuditService(st)
	t := cfg.Similarity
	return &App{
		Config:    cfg,
		Store:     st,
		Engine:    engine,
		Audit:     audit,
		Hierarchy: service.NewHierarchyService(st, audit),
		Similarity: service.NewSimilarityService(st, engine, service.SimilarityOptions{
			DefaultMethod: domain.ComputationMethod(t.Method),
			MinScore:      t.MinScore,
			Workers:       t.Workers,
		}),
		Relations: service.NewRelationService(st, service.RelationOptions{
			SimilarThreshold: t.SimilarThreshold,
			SiblingStrength:  t.SiblingStrength,
		}),
	}, nil
}

// NewEngine registers every computation method. Cosine uses Ollama
// embeddings when OLLAMA_EMBED_URL is set and term vectors otherwise.
func NewEngine(cfg *config.Config) *port.SimilarityEngine {
	w := cfg.Similarity.Weights
	var embedder port.Embedder
	if cfg.OllamaEmbedURL != "" {
		embedder = ai.NewOllamaEmbedder(ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		})
	}
	return port.NewSimilarityEngine(
		similarity.NewJaccardStrategy(similarity.Weights{
			Tag:         w.Tag,
			Segment:     w.Segment,
			Category:    w.Category,
			ContentType: w.ContentType,
			Parent:      w.Parent,
		}),
		similarity.NewTFIDFStrategy(),
		similarity.NewCosineStrategy(embedder),
	)
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
