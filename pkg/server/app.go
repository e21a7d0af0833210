// Package server assembles the services and the HTTP router.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	config "gtm-agent-api/configs"
	"gtm-agent-api/internal/webfetch"
	"gtm-agent-api/pkg/anthropic"
	"gtm-agent-api/pkg/azure"
	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/observability"
	"gtm-agent-api/pkg/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the wired services behind the router.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Registry   *prometheus.Registry
	Metrics    *services.Metrics
	Artifacts  *services.ArtifactService
	Sessions   *services.SessionService
	Monitoring *services.MonitoringService

	closers []func() error
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Store     services.ArtifactStore
	Provider  services.ContextProvider
	Generator services.ContentGenerator
}

// NewApp builds every service from cfg. Redis is used for artifacts when
// REDIS_ADDR is set; the content generator is disabled (placeholders only)
// when the selected LLM backend has no credentials.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	app := &App{Config: cfg, Log: log, Registry: reg, Metrics: metrics}

	shutdownTracing, err := observability.InitTracing(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	})

	store := opts.Store
	if store == nil {
		store, err = app.artifactStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	app.Artifacts = services.NewArtifactService(store, metrics, log)

	provider := opts.Provider
	if provider == nil {
		fetcher := webfetch.NewFetcher(webfetch.Options{
			Timeout:   cfg.ContextFetchTimeout,
			UserAgent: cfg.ContextFetchUserAgent,
		})
		provider = services.NewWebContextProvider(fetcher, metrics, log)
	}

	generator := opts.Generator
	if generator == nil {
		gen, err := newGenerator(cfg, log)
		if err != nil {
			return nil, err
		}
		if gen != nil {
			generator = gen
		}
	}

	sequencer := services.NewArtifactSequencer(app.Artifacts, generator, metrics, log)
	app.Sessions = services.NewSessionService(provider, sequencer, metrics, log)
	app.Monitoring = services.NewMonitoringService(metrics, log)
	return app, nil
}

func (a *App) artifactStore(ctx context.Context) (services.ArtifactStore, error) {
	if a.Config.RedisAddr == "" {
		a.Log.Info("using in-memory artifact store")
		return services.NewMemoryArtifactStore(), nil
	}
	store, err := services.NewRedisArtifactStore(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Config.RedisKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("redis artifact store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	a.Log.Info("using redis artifact store", "addr", a.Config.RedisAddr, "prefix", a.Config.RedisKeyPrefix)
	return store, nil
}

// newGenerator returns nil when no backend is configured.
func newGenerator(cfg *config.Config, log *logger.Logger) (*services.LLMContentGenerator, error) {
	var client services.LLMClient
	switch strings.ToLower(cfg.LLMProvider) {
	case "azure":
		if cfg.AzureOpenAIEndpoint == "" || cfg.AzureOpenAIAPIKey == "" {
			log.Warn("azure openai not configured, artifacts will use placeholders")
			return nil, nil
		}
		client = azure.NewOpenAIClient(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIAPIKey, cfg.AzureOpenAIAPIVersion, cfg.AzureOpenAIChatDeploymentName)
	case "anthropic", "":
		if cfg.AnthropicAPIKey == "" {
			log.Warn("anthropic api key not set, artifacts will use placeholders")
			return nil, nil
		}
		client = anthropic.NewClient(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.AnthropicModel)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.LLMMaxTokens
	if maxTokens <= 0 {
		maxTokens = prompts.MaxTokens
	}
	log.Info("content generator ready", "provider", cfg.LLMProvider, "max_tokens", maxTokens)
	return services.NewLLMContentGenerator(client, prompts.System, prompts.Artifacts, maxTokens, log)
}

// Close releases external connections.
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
