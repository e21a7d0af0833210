package services

import (
	"context"
	"errors"
	"fmt"

	"gtm-agent-api/internal/webfetch"
	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// ContextProvider learns about a company from its URL. It never returns an
// error: every failure becomes a CompanyContext with Success=false.
type ContextProvider interface {
	FetchContext(ctx context.Context, rawURL string) models.CompanyContext
}

// WebContextProvider fetches the page and extracts company facts from it.
// Concurrent requests for the same URL share one fetch.
type WebContextProvider struct {
	fetcher *webfetch.Fetcher
	metrics *Metrics
	log     *logger.Logger
	group   singleflight.Group
}

func NewWebContextProvider(fetcher *webfetch.Fetcher, metrics *Metrics, log *logger.Logger) *WebContextProvider {
	return &WebContextProvider{
		fetcher: fetcher,
		metrics: metrics,
		log:     log.With("service", "context_provider"),
	}
}

func (p *WebContextProvider) FetchContext(ctx context.Context, rawURL string) models.CompanyContext {
	ctx, span := tracer.Start(ctx, "context.fetch", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	pageURL, err := webfetch.NormalizeURL(rawURL)
	if err != nil {
		return p.failed(rawURL, "Invalid URL format")
	}

	// The shared fetch outlives any single caller; the fetcher timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, _, shared := p.group.Do(pageURL, func() (interface{}, error) {
		return p.fetch(fetchCtx, pageURL), nil
	})
	span.SetAttributes(attribute.Bool("shared", shared))

	result := v.(models.CompanyContext)
	result.KeyFeatures = append([]string{}, result.KeyFeatures...)
	span.SetAttributes(attribute.Bool("success", result.Success))
	return result
}

func (p *WebContextProvider) fetch(ctx context.Context, pageURL string) models.CompanyContext {
	body, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var statusErr *webfetch.StatusError
		switch {
		case errors.Is(err, webfetch.ErrTimeout):
			return p.failed(pageURL, fmt.Sprintf("Timeout after %s", p.fetcher.Timeout()))
		case errors.As(err, &statusErr):
			return p.failed(pageURL, statusErr.Error())
		default:
			return p.failed(pageURL, fmt.Sprintf("Fetch failed: %v", err))
		}
	}

	facts := webfetch.Extract(pageURL, body)
	p.metrics.ContextFetched("success")
	p.log.Info("company context fetched", "url", pageURL, "company", facts.CompanyName, "features", len(facts.Features))

	features := facts.Features
	if features == nil {
		features = []string{}
	}
	return models.CompanyContext{
		Success:            true,
		CompanyName:        facts.CompanyName,
		ProductDescription: facts.Description,
		KeyFeatures:        features,
		SourceURL:          pageURL,
	}
}

func (p *WebContextProvider) failed(sourceURL, reason string) models.CompanyContext {
	p.metrics.ContextFetched("failure")
	p.log.Warn("company context unavailable", "url", sourceURL, "reason", reason)
	return models.CompanyContext{
		Success:     false,
		KeyFeatures: []string{},
		SourceURL:   sourceURL,
		Error:       reason,
	}
}
