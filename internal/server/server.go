package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/paybridge/internal/config"
	"github.com/railzwaylabs/paybridge/internal/observability/metrics"
	paymentservice "github.com/railzwaylabs/paybridge/internal/payment/service"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	Webhooks    *webhook.Service
	Payments    *paymentservice.Service
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

type Server struct {
	engine   *gin.Engine
	log      *zap.Logger
	webhooks *webhook.Service
	payments *paymentservice.Service
	gatherer prometheus.Gatherer
	maxBody  int64
}

func NewServer(p Params) *Server {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(p.Log), metrics.GinMiddleware(p.HTTPMetrics))

	s := &Server{
		engine:   engine,
		log:      p.Log.Named("server"),
		webhooks: p.Webhooks,
		payments: p.Payments,
		gatherer: p.Gatherer,
		maxBody:  p.Config.Server.MaxBodyBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Health)
	s.engine.GET("/readyz", s.Ready)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	s.engine.POST("/webhooks/:provider", s.ReceiveWebhook)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// RunHTTP serves until the application stops and then drains in-flight
// requests.
func RunHTTP(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cfg.Server.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
