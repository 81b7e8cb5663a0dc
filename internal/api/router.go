package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/convomesh/memoryd/internal/auth"
	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/resilience"
)

// RouterConfig carries the server-level knobs router.go needs beyond the
// Handler's own dependencies.
type RouterConfig struct {
	RequestTimeout  time.Duration
	RequestMaxBytes int64
	RateLimit       config.RateLimitConfig
}

const (
	defaultGlobalLimitSpec = "200/minute"
	defaultTenantLimitSpec = "120/minute"
)

// NewRouter builds the gin.Engine: middleware chain, route table, and the
// Prometheus /metrics endpoint.
//
// ErrorHandlerMiddleware is registered right after Recovery/RequestID so
// that its post-c.Next() error check still runs on unwind even when a
// downstream middleware calls c.Abort() — gin walks the deferred half of
// every earlier-registered middleware regardless of where Abort happened.
func NewRouter(h *Handler, cfg RouterConfig, registry *prometheus.Registry, validator *auth.Validator, logger observability.Logger, metrics observability.MetricsClient) (*gin.Engine, error) {
	globalLimiter, err := limiterFromSpecOrDefault(cfg.RateLimit.Global, defaultGlobalLimitSpec)
	if err != nil {
		return nil, err
	}
	tenantLimiter, err := limiterFromSpecOrDefault(cfg.RateLimit.Tenant, defaultTenantLimitSpec)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(RequestID())
	r.Use(ErrorHandlerMiddleware(func(detail string, err error, requestID, path string) {
		logger.Error(detail, map[string]interface{}{"error": err.Error(), "request_id": requestID, "path": path})
	}))
	r.Use(RequestLogger(logger))
	r.Use(MaxBytes(cfg.RequestMaxBytes))
	r.Use(RateLimit("global", globalLimiter, func(c *gin.Context) string { return "global" }, metrics))
	r.Use(RateLimit("tenant", tenantLimiter, tenantKey, metrics))
	r.Use(Timeout(cfg.RequestTimeout))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.GET("/admin/health", h.health) // unauthenticated: polled by load balancers/orchestrators

	protected := v1.Group("")
	if validator != nil && validator.Enabled() {
		protected.Use(AuthMiddleware(validator))
	}
	{
		protected.POST("/messages", h.ingest)
		protected.GET("/messages/:id", h.getMessage)
		protected.GET("/memory/search", h.search)

		admin := protected.Group("/admin")
		{
			admin.POST("/retention/run", h.retentionRun)
			admin.GET("/retention/rules/:tenant", h.listRetentionRules)
			admin.PUT("/retention/rules/:tenant", h.upsertRetentionRule)
		}
	}

	return r, nil
}

func tenantKey(c *gin.Context) string {
	if id := c.Query("tenant_id"); id != "" {
		return id
	}
	if id := c.Param("tenant"); id != "" {
		return id
	}
	return "unknown"
}

func limiterFromSpecOrDefault(spec, def string) (*resilience.SlidingWindowLimiter, error) {
	if spec == "" {
		spec = def
	}
	return resilience.NewSlidingWindowLimiterFromSpec(spec)
}
