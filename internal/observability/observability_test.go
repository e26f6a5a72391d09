package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"

	"wayfinder/internal/query"
	"wayfinder/internal/rpc"
)

var (
	_ query.Metrics = (*Collector)(nil)
	_ rpc.Metrics   = (*Collector)(nil)
)

func TestCollector_QueryMetrics(t *testing.T) {
	c := NewCollector("test")

	c.CacheHit("location")
	c.CacheHit("location")
	c.CacheMiss("location")
	c.FetchAttempt("locationMetrics")
	c.FetchAttempt("locationMetrics")
	c.FetchCompleted("locationMetrics", "error", 20*time.Millisecond)
	c.MutationCompleted("editComment", "success")
	c.Invalidated("locationComments", 3)
	c.ObserveRequest("location", 200, time.Millisecond)
	c.ObserveRequest("location", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("location", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("location", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.FetchAttempts.WithLabelValues("locationMetrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Mutations.WithLabelValues("editComment", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Invalidations.WithLabelValues("locationComments")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.RPCDuration))
}

func TestCollector_HTTPMiddlewareAndHandler(t *testing.T) {
	c := NewCollector("test")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Method(http.MethodGet, "/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/"+id, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/things/{id}", "202")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "test_http_requests_total"))
}

func TestNewLogger(t *testing.T) {
	logger, atom, err := NewLogger("warn", "json")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Equal(t, zapcore.WarnLevel, atom.Level())

	require.NoError(t, SetLevel(atom, "debug"))
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, SetLevel(atom, "chatty"))
	_, _, err = NewLogger("chatty", "console")
	assert.Error(t, err)
}

func TestTracerProvider_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := newProvider(context.Background(), TracingConfig{
		ServiceName: "wayfinder-test",
		Environment: "test",
		SampleRate:  1,
	}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)

	_, span := tp.provider.Tracer("test").Start(context.Background(), "rpc.location")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "rpc.location", spans[0].Name())
	svc, ok := spans[0].Resource().Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "wayfinder-test", svc.AsString())
}
