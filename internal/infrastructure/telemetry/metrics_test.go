package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewMetrics_Disabled(t *testing.T) {
	m, cleanup, err := NewMetrics(configloader.ServiceMetadata{}, &configloader.Observability{}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	defer cleanup()
	require.False(t, m.Enabled())
}

func TestNewMetrics_ServesOtelInstruments(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m, cleanup, err := NewMetrics(
		configloader.ServiceMetadata{Name: "moderation", Version: "test", InstanceID: "host-1"},
		&configloader.Observability{MetricsEnabled: true, MetricsPath: "/metrics"},
		log.NewStdLogger(io.Discard),
	)
	require.NoError(t, err)
	defer cleanup()
	require.True(t, m.Enabled())
	require.Equal(t, "/metrics", m.Path())

	counter, err := otel.GetMeterProvider().Meter("telemetry.test").Int64Counter("moderation_jobs_checked_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "moderation_jobs_checked_total")
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
