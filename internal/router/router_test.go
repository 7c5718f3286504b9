package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/umedi/intake-api/internal/handler/health"
	"github.com/umedi/intake-api/pkg/logger"
	"github.com/umedi/intake-api/pkg/metrics"
)

type okPinger struct{}

func (okPinger) PingContext(ctx context.Context) error { return nil }

type stubAppointments struct{}

func (stubAppointments) RegisterRoutes(r gin.IRouter) {
	r.GET("/appointment", func(c *gin.Context) { c.JSON(http.StatusOK, []string{}) })
	r.PUT("/appointment", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"appointment_id": "1"}) })
}

func newTestRouter() *gin.Engine {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("intake", reg)
	r := NewRouter(stubAppointments{}, health.NewHandler(okPinger{}, 0), RouterConfig{
		Mode:      gin.TestMode,
		RateLimit: 1000,
		RateBurst: 1000,
		Gatherer:  reg,
	}, logger.Nop(), m)
	r.Setup()
	return r.Engine()
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_Routes(t *testing.T) {
	engine := newTestRouter()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/appointment", http.StatusOK},
		{http.MethodPut, "/appointment", http.StatusOK},
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRouter_UnsupportedMethod(t *testing.T) {
	engine := newTestRouter()

	for _, method := range []string{http.MethodPost, http.MethodDelete, http.MethodPatch} {
		w := serve(engine, method, "/appointment")
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
		assert.JSONEq(t, `{"message":"bad request"}`, w.Body.String(), method)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), method)
	}
}

func TestRouter_IntakeHeaders(t *testing.T) {
	engine := newTestRouter()

	w := serve(engine, http.MethodGet, "/appointment")
	assert.Equal(t, "POST,PUT,GET", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_MetricsExposeRequests(t *testing.T) {
	engine := newTestRouter()
	serve(engine, http.MethodGet, "/appointment")

	w := serve(engine, http.MethodGet, "/metrics")
	assert.Contains(t, w.Body.String(), "intake_http_requests_total")
}
