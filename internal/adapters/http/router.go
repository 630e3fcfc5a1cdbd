package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Deps are the server components the router exposes.
type Deps struct {
	Mailbox *app.Mailbox
	Hub     *app.Hub
	Auth    *Authenticator
	Limiter *RateLimiter
	Metrics metrics.Collector
}

func metricsMiddleware(m metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestObserved(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidators()

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(metricsMiddleware(d.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	calls := &CallHandlers{Mailbox: d.Mailbox, Metrics: d.Metrics}
	events := &EventsController{
		Hub:        d.Hub,
		Metrics:    d.Metrics,
		PingPeriod: cfg.PingPeriod,
		ReadLimit:  cfg.ReadLimit,
	}

	api := r.Group("/api", AuthMiddleware(d.Auth))
	api.GET("/ws/events", func(c *gin.Context) {
		events.HandleEvents(ctx, c)
	})

	limited := api.Group("/calls", RateLimitMiddleware(d.Limiter, d.Metrics))
	limited.POST("/offer", calls.SendOffer)
	limited.POST("/answer", calls.SendAnswer)
	limited.POST("/candidate", calls.SendCandidate)
	limited.GET("/incoming", calls.Incoming)
	limited.GET("/:callId/answer", calls.PollAnswer)
	limited.GET("/:callId/candidates", calls.PollCandidates)
	limited.POST("/:callId/end", calls.EndCall)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
