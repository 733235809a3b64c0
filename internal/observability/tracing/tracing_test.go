package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T) {
	t.Helper()
	tp, err := NewProvider(nil, Config{
		ServiceName:   "entrypay",
		Environment:   "test",
		SamplingRatio: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
}

func TestProviderWithoutExporterIssuesTraceIDs(t *testing.T) {
	newTestProvider(t)

	ctx, span := otel.Tracer("entrypay/test").Start(context.Background(), "op")
	defer span.End()

	sc := trace.SpanContextFromContext(ctx)
	assert.True(t, sc.IsValid())
	assert.True(t, sc.HasTraceID())
}

func TestGinMiddlewareOpensSpanPerRequest(t *testing.T) {
	newTestProvider(t)
	gin.SetMode(gin.TestMode)

	var traceID string
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		traceID = trace.SpanContextFromContext(c.Request.Context()).TraceID().String()
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "00000000000000000000000000000000", traceID)
}

func TestGinMiddlewareContinuesInboundTrace(t *testing.T) {
	newTestProvider(t)
	gin.SetMode(gin.TestMode)

	var traceID string
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		traceID = trace.SpanContextFromContext(c.Request.Context()).TraceID().String()
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
}
