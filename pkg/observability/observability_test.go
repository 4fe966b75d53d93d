package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNew_DisabledIsNoOp(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_NoEndpointStaysDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: true, OTLPEndpoint: ""})
	require.NoError(t, err)
	assert.Nil(t, p.tracerProvider)
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "antevus-ledger", p.config.ServiceName)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample(), sampler(1.0))
	assert.Equal(t, sdktrace.NeverSample(), sampler(0))
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25), sampler(0.25))
}
