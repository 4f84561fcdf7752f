package telemetry

import (
	"context"
	"testing"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestProviderRecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newProvider(context.Background(),
		config.TelemetryConfig{ServiceName: "test", Environment: "test", SampleRatio: 5},
		sdktrace.WithSyncer(exp),
	)
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "audit.Verify")
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "audit.Verify", spans[0].Name)
}
