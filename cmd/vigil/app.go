package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vigil-ai/vigil/pkg/config"
	"github.com/vigil-ai/vigil/pkg/engine"
	"github.com/vigil-ai/vigil/pkg/knowledge"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/router"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/skills"
	"github.com/vigil-ai/vigil/pkg/store"
	"github.com/vigil-ai/vigil/pkg/telemetry"
)

// app holds the wired service graph. Everything is passed explicitly;
// there is no global state beyond the default slog logger.
type app struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     store.Store
	Registry  *skill.Registry
	Engine    *engine.Engine
	retriever knowledge.Retriever

	shutdown []func(context.Context) error
}

type buildOptions struct {
	// SkipStore builds without opening the event database, for commands
	// that only inspect the registry.
	SkipStore bool
}

func build(ctx context.Context, cfg *config.Config, opts buildOptions) (*app, error) {
	a := &app{Config: cfg}

	telemetryShutdown, err := telemetry.InitWithConfig("vigil", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = append(a.shutdown, telemetryShutdown)

	a.Logger = telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	if !opts.SkipStore {
		st, err := store.OpenSQLite(cfg.Events.Path)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("open event store: %w", err)
		}
		a.Store = st
		a.shutdown = append(a.shutdown, func(context.Context) error { return st.Close() })
	} else {
		a.Store = store.NewMemoryStore()
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	client := llm.NewClient(provider, cfg.LLM.Model, cfg.LLM.Temperature)
	visionClient := llm.NewClient(provider, cfg.LLM.VisionModel, cfg.LLM.Temperature)

	a.retriever, err = buildRetriever(ctx, cfg, a.Logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Registry = skill.NewRegistry(skill.WithLogger(a.Logger))
	factories := skills.Factories(skills.Deps{
		Store:          a.Store,
		Client:         client,
		VisionClient:   visionClient,
		Retriever:      a.retriever,
		RetrieverLimit: cfg.Knowledge.TopK,
		SpecDir:        cfg.Skills.Dir,
		Logger:         a.Logger,
	})
	loaded := a.Registry.RegisterAll(filterFactories(factories, cfg.Skills.Enabled))
	if loaded == 0 {
		a.Close(ctx)
		return nil, errors.New("no skills loaded")
	}

	routerMetrics, err := telemetry.NewRouterMetrics()
	if err != nil {
		a.Logger.Warn("router metrics unavailable", "error", err)
	}
	engineMetrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		a.Logger.Warn("engine metrics unavailable", "error", err)
	}

	rt := router.NewRouter(a.Registry, client,
		router.WithMetrics(routerMetrics),
		router.WithRouterLogger(a.Logger),
	)
	a.Engine = engine.New(a.Registry, rt, client,
		engine.WithMetrics(engineMetrics),
		engine.WithLogger(a.Logger),
	)

	a.Logger.Info("vigil ready",
		"skills", loaded,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"knowledge", cfg.Knowledge.Enabled,
	)
	return a, nil
}

// filterFactories keeps only the enabled skills, in factory order. An
// empty list enables everything.
func filterFactories(factories []skill.Factory, enabled []string) []skill.Factory {
	if len(enabled) == 0 {
		return factories
	}
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}
	var out []skill.Factory
	for _, factory := range factories {
		if allow[factory.Name] {
			out = append(out, factory)
		}
	}
	return out
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return llm.NewOllama(cfg.LLM.BaseURL), nil
	case "mock":
		// offline smoke-testing provider
		return &llm.MockProvider{Response: "mock response"}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildRetriever(ctx context.Context, cfg *config.Config, logger *slog.Logger) (knowledge.Retriever, error) {
	if !cfg.Knowledge.Enabled {
		return knowledge.NewStaticRetriever(knowledge.DefaultDocuments()), nil
	}

	embedder := knowledge.NewOllamaEmbedder(cfg.Knowledge.EmbedderBaseURL, cfg.Knowledge.EmbedderModel)
	qs, err := knowledge.NewQdrantStore(cfg.Knowledge.QdrantAddr, cfg.Knowledge.Collection, embedder,
		knowledge.WithScoreThreshold(float32(cfg.Knowledge.ScoreThreshold)))
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	// the collection dimension follows the embedder model
	probe, err := embedder.Embed(ctx, "vigil dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probe embedder: %w", err)
	}
	if err := qs.EnsureCollection(ctx, uint64(len(probe))); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	logger.Info("vector knowledge base connected",
		"addr", cfg.Knowledge.QdrantAddr,
		"collection", cfg.Knowledge.Collection,
		"dimension", len(probe),
	)
	return qs, nil
}

// ImportEvents loads a JSON event dump into the store.
func (a *app) ImportEvents(ctx context.Context, path string) (int, error) {
	st, ok := a.Store.(*store.SQLiteStore)
	if !ok {
		return 0, errors.New("event import requires the sqlite store")
	}
	return st.ImportJSON(ctx, path)
}

// SeedKnowledge indexes the built-in document set when the retriever
// supports indexing. Returns the number of documents indexed.
func (a *app) SeedKnowledge(ctx context.Context) (int, error) {
	indexer, ok := a.retriever.(knowledge.Indexer)
	if !ok {
		return 0, nil
	}
	docs := knowledge.DefaultDocuments()
	if err := indexer.Index(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Close tears the app down in reverse construction order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
