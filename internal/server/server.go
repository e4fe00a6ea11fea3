package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joelbyler272/naturescripts-sub001/internal/server/middleware"
	"github.com/joelbyler272/naturescripts-sub001/pkg/env"
	"github.com/joelbyler272/naturescripts-sub001/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultGracefulShutdownTimeout = 10 * time.Second

	ConsultationRateLimitPolicy = "consultation"
	UsageRateLimitPolicy        = "usage"
	AdminRateLimitPolicy        = "admin"
)

type rateLimitServicer interface {
	middleware.RateLimitMiddlewareServicer
	rateLimitAdminServicer
}

type Config struct {
	port                  string
	readTimeoutInSeconds  time.Duration
	writeTimeoutInSeconds time.Duration
	maxHeaderBytes        int
	trustedProxies        []string
	handler               *gin.Engine
	rateLimiter           rateLimitServicer
	usage                 usageServicer
	tiers                 tierServicer
	metrics               *metrics.Metrics
	metricsPath           string
	metricsEnabled        bool
	adminToken            string
	disableRateLimiter    bool
}

type Option func(config *Config)

func WithDisableRateLimiter(value bool) Option {
	return func(config *Config) {
		config.disableRateLimiter = value
	}
}

func WithMetrics(m *metrics.Metrics, enabled bool, path string) Option {
	return func(config *Config) {
		config.metrics = m
		config.metricsEnabled = enabled
		config.metricsPath = path
	}
}

// WithAdminToken overrides APP_ADMIN_TOKEN. An empty token leaves the admin routes unregistered.
func WithAdminToken(token string) Option {
	return func(config *Config) {
		config.adminToken = token
	}
}

// WithTrustedProxies overrides APP_TRUSTED_PROXIES. Forwarding headers are only honoured from these addresses.
func WithTrustedProxies(proxies []string) Option {
	return func(config *Config) {
		config.trustedProxies = proxies
	}
}

func WithPort(port string) Option {
	return func(config *Config) {
		config.port = port
	}
}

func NewServer(rateLimiter rateLimitServicer, usage usageServicer, tiers tierServicer, opts ...Option) *Config {
	envObj := env.GetEnv()
	c := &Config{
		port:                  envObj.ServerPort,
		readTimeoutInSeconds:  envObj.ServerReadTimeoutInSecond,
		writeTimeoutInSeconds: envObj.ServerWriteTimeoutInSecond,
		maxHeaderBytes:        envObj.ServerMaxHeaderBytes,
		trustedProxies:        envObj.TrustedProxies,
		handler:               gin.Default(),
		rateLimiter:           rateLimiter,
		usage:                 usage,
		tiers:                 tiers,
		metricsPath:           "/metrics",
		adminToken:            envObj.AdminToken,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.handler.SetTrustedProxies(c.trustedProxies); err != nil {
		slog.Error("invalid trusted proxies, forwarding headers are ignored", "proxies", c.trustedProxies, "error", err)
		_ = c.handler.SetTrustedProxies(nil)
	}

	if c.metrics == nil {
		c.metrics = metrics.New()
	}

	c.routes()
	return c
}

func (s *Config) rateLimit(policyName string) gin.HandlerFunc {
	if s.disableRateLimiter {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimitMiddleware(s.rateLimiter, s.metrics, policyName)
}

func (s *Config) routes() {
	s.handler.Use(middleware.RequestIDMiddleware)
	s.handler.Use(middleware.QueueTimeMiddleware)
	s.handler.Use(middleware.AuthenticationMiddleware)

	s.handler.GET("/health", healthHandler)
	if s.metricsEnabled {
		s.handler.GET(s.metricsPath, gin.WrapH(s.metrics.Handler()))
	}

	api := s.handler.Group("/api")
	api.GET("/usage", s.rateLimit(UsageRateLimitPolicy), middleware.RequireUser, UsageHandler(s.usage, s.metrics))
	api.POST("/consultations", s.rateLimit(ConsultationRateLimitPolicy), middleware.RequireUser, ConsultationHandler(s.usage, s.metrics))

	if s.adminToken == "" {
		slog.Warn("admin token is not set, admin routes are disabled")
		return
	}

	admin := s.handler.Group("/admin", s.rateLimit(AdminRateLimitPolicy), middleware.RequireAdmin(s.adminToken))
	admin.GET("/rate-limits/:policy/:identifier", GetRateLimitStatusHandler(s.rateLimiter))
	admin.DELETE("/rate-limits/:policy/:identifier", DeleteRateLimitHandler(s.rateLimiter))
	admin.PUT("/users/:id/tier", SetTierHandler(s.tiers))
}

func (s *Config) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Config) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:           s.port,
		Handler:        s.handler,
		ReadTimeout:    s.readTimeoutInSeconds,
		WriteTimeout:   s.writeTimeoutInSeconds,
		MaxHeaderBytes: s.maxHeaderBytes,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", s.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down the server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultGracefulShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		slog.Info("Server exited gracefully")
		return nil
	})

	return g.Wait()
}
