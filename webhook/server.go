// Package webhook receives TradingView alerts over HTTP and hands the
// normalized bars to the live manager.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/regimetrader/live"
	"github.com/rustyeddy/regimetrader/market"
)

const SecretHeader = "X-Webhook-Secret"

// Config configures the HTTP listener.
type Config struct {
	Listen    string        `json:"listen" yaml:"listen" default:":8080"`
	Secret    string        `json:"secret,omitempty" yaml:"secret,omitempty"`
	RateLimit float64       `json:"rate_limit" yaml:"rate_limit" default:"10" validate:"gte=0"` // requests per second per client, 0 disables
	Burst     int           `json:"burst" yaml:"burst" default:"20" validate:"gte=0"`
	BodyLimit string        `json:"body_limit" yaml:"body_limit" default:"64K"`
	Shutdown  time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`

	// TrustedProxies lists the CIDRs whose X-Forwarded-For is honored.
	// Empty means the client address is the TCP peer.
	TrustedProxies []string `json:"trusted_proxies,omitempty" yaml:"trusted_proxies,omitempty" validate:"dive,cidr"`
}

// Dispatcher accepts normalized bars. *live.Manager implements it.
type Dispatcher interface {
	Dispatch(market.Bar) error
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the echo application.
type Server struct {
	cfg     Config
	d       Dispatcher
	log     zerolog.Logger
	metrics http.Handler
	now     func() time.Time
	limit   *limiter
	echo    *echo.Echo
}

func New(cfg Config, d Dispatcher, opts ...Option) *Server {
	s := &Server{cfg: cfg, d: d, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limit = newLimiter(cfg.RateLimit, burst, s.now)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = s.ipExtractor()

	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Str("remote_ip", v.RemoteIP).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.echo = e
	s.routes()
	return s
}

// ipExtractor never reads forwarding headers unless the peer is a
// configured proxy.
func (s *Server) ipExtractor() echo.IPExtractor {
	if len(s.cfg.TrustedProxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range s.cfg.TrustedProxies {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			s.log.Warn().Str("cidr", cidr).Err(err).Msg("ignoring trusted proxy")
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipnet))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func (s *Server) routes() {
	e := s.echo
	e.POST("/webhook/tradingview", s.tradingView)
	e.GET("/webhook/test", s.test)
	e.POST("/webhook/test", s.test)
	e.GET("/healthz", s.health)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.cfg.Listen).Msg("webhook server listening")
		if err := s.echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Shutdown
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.echo.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info().Msg("webhook server stopped")
	return nil
}

type response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Stream  string            `json:"stream,omitempty"`
	BarTime *time.Time        `json:"bar_time,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

func fail(c echo.Context, code int, msg string, errs ...ValidationError) error {
	return c.JSON(code, response{Status: "error", Message: msg, Errors: errs})
}

func (s *Server) tradingView(c echo.Context) error {
	if s.limit != nil && !s.limit.Allow(c.RealIP()) {
		return fail(c, http.StatusTooManyRequests, "rate limited")
	}

	var p Payload
	if errs := readPayload(c, &p); errs != nil {
		s.log.Warn().Interface("errors", errs).Msg("webhook payload rejected")
		return fail(c, http.StatusBadRequest, "invalid payload", errs...)
	}

	if !s.authorized(c, p.Secret) {
		return fail(c, http.StatusUnauthorized, "bad secret")
	}

	b, err := p.Bar(s.now())
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("webhook bar rejected")
		return fail(c, http.StatusBadRequest, "invalid bar", ValidationError{Code: "ERR_BAR", Message: err.Error()})
	}

	switch err := s.d.Dispatch(b); {
	case err == nil:
	case errors.Is(err, live.ErrUnknownSession):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, live.ErrQueueFull):
		return fail(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, live.ErrRunnerClosed):
		return fail(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Str("stream", b.Key()).Msg("dispatch failed")
		return fail(c, http.StatusInternalServerError, err.Error())
	}

	s.log.Debug().Str("stream", b.Key()).Time("bar_time", b.OpenTime).Str("action", b.Action).Msg("bar queued")
	t := b.OpenTime
	return c.JSON(http.StatusAccepted, response{Status: "accepted", Stream: b.Key(), BarTime: &t})
}

// authorized checks the shared secret from the header or, because
// TradingView cannot set headers, the payload.
func (s *Server) authorized(c echo.Context, bodySecret string) bool {
	if s.cfg.Secret == "" {
		return true
	}
	got := c.Request().Header.Get(SecretHeader)
	if got == "" {
		got = bodySecret
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Secret)) == 1
}

func (s *Server) test(c echo.Context) error {
	return c.JSON(http.StatusOK, response{Status: "ok", Message: "webhook test endpoint"})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, response{Status: "ok"})
}
