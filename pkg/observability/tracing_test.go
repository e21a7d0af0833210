package observability

import (
	"context"
	"testing"

	config "gtm-agent-api/configs"
	"gtm-agent-api/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracing_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := InitTracing(context.Background(), &config.Config{}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitTracing_OTLP(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	cfg := &config.Config{
		Environment:     "test",
		OTelEnabled:     true,
		OTelServiceName: "gtm-agent-api",
		OTelEndpoint:    "127.0.0.1:4318",
		OTelInsecure:    true,
		OTelSampleRatio: 1,
	}
	shutdown, err := InitTracing(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
