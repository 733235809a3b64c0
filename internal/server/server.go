package server

import (
	"context"
	"net/http"
	"time"

	"github.com/craftlane/entrypay/internal/cart"
	"github.com/craftlane/entrypay/internal/checkout"
	checkoutservice "github.com/craftlane/entrypay/internal/checkout/service"
	"github.com/craftlane/entrypay/internal/config"
	"github.com/craftlane/entrypay/internal/notification"
	"github.com/craftlane/entrypay/internal/observability"
	obsmiddleware "github.com/craftlane/entrypay/internal/observability/logger"
	obsmetrics "github.com/craftlane/entrypay/internal/observability/metrics"
	obstracing "github.com/craftlane/entrypay/internal/observability/tracing"
	"github.com/craftlane/entrypay/internal/payhere"
	"github.com/craftlane/entrypay/internal/payment"
	paymentservice "github.com/craftlane/entrypay/internal/payment/service"
	"github.com/craftlane/entrypay/internal/ratelimit"
	"github.com/craftlane/entrypay/internal/registration"
	registrationservice "github.com/craftlane/entrypay/internal/registration/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	cart.Module,
	payhere.Module,
	payment.Module,
	registration.Module,
	checkout.Module,
	notification.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// spans open before request logging so correlation fields see them
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, m *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(obsCfg, m, registry)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	paymentSvc      *paymentservice.Service
	checkoutSvc     *checkoutservice.Service
	registrationSvc *registrationservice.Service
	limiter         *ratelimit.PublicLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	PaymentSvc      *paymentservice.Service
	CheckoutSvc     *checkoutservice.Service
	RegistrationSvc *registrationservice.Service
	Limiter         *ratelimit.PublicLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		paymentSvc:      p.PaymentSvc,
		checkoutSvc:     p.CheckoutSvc,
		registrationSvc: p.RegistrationSvc,
		limiter:         p.Limiter,
		obsMetrics:      p.ObsMetrics,
	}

	s.registerWebhookRoutes()
	s.registerPublicRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// The gateway endpoint is never rate limited: PayHere controls its own retry
// schedule and a throttled delivery is a lost delivery.
func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payhere", s.HandlePayHereNotification)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/", s.limiter.Middleware())

	public.POST("/checkout", s.CreateCheckout)
	public.GET("/payments/return", s.PaymentReturn)
	public.GET("/registrations/:number", s.GetRegistration)
}
