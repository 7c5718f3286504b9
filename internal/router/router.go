package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/umedi/intake-api/internal/handler"
	"github.com/umedi/intake-api/internal/middleware"
	"github.com/umedi/intake-api/pkg/logger"
	"github.com/umedi/intake-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type RouterConfig struct {
	Mode        string
	RateLimit   rate.Limit
	RateBurst   int
	MaxBodySize int64
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

type Router struct {
	engine       *gin.Engine
	appointmentH Handler
	healthH      Handler
	config       RouterConfig
	log          *logger.Logger
	metrics      *metrics.Metrics
}

func NewRouter(appointmentH, healthH Handler, config RouterConfig, log *logger.Logger, m *metrics.Metrics) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.CORS(),
	)
	if config.RateLimit > 0 {
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit())
	}

	// Unsupported methods on a known path answer like malformed requests.
	engine.NoMethod(handler.BadRequest)

	return &Router{
		engine:       engine,
		appointmentH: appointmentH,
		healthH:      healthH,
		config:       config,
		log:          log,
		metrics:      m,
	}
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)

	gatherer := r.config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	intake := r.engine.Group("")
	intake.Use(
		middleware.NoStore(),
		middleware.SizeLimit(r.config.MaxBodySize),
	)
	r.appointmentH.RegisterRoutes(intake)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
