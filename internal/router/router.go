package router

import (
	"net"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"academypay/internal/config"
	"academypay/internal/handler"
	"academypay/internal/handler/api"
	"academypay/internal/middleware"
)

// Deps bundles what the routes are served from.
type Deps struct {
	Payments       handler.Payments
	Finder         handler.PaymentFinder
	Repos          *api.Repos
	PayFast        config.PayFastConfig
	APIKey         string
	// TrustedProxies enables X-Forwarded-For for requests arriving through them.
	TrustedProxies []string
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, deps Deps) {
	logger := deps.Logger
	e.IPExtractor = ipExtractor(deps.TrustedProxies, logger)

	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Registerer: deps.Registerer,
	}))

	// Handlers
	paymentCallbackHandler := handler.NewPaymentCallbackHandler(deps.Payments, deps.Finder, logger)
	paymentHandler := api.NewPaymentHandler(deps.Repos, logger)
	bookingHandler := api.NewBookingHandler(deps.Repos, logger)
	mandateHandler := api.NewMandateHandler(deps.Repos, logger)

	// PayFast routes
	payfastGroup := e.Group("/payment/payfast")
	payfastGroup.POST("/checkout", paymentCallbackHandler.Checkout)
	payfastGroup.GET("/return", paymentCallbackHandler.Return)
	payfastGroup.GET("/cancel", paymentCallbackHandler.Cancel)

	var notifyMW []echo.MiddlewareFunc
	if deps.PayFast.SourceCheck {
		notifyMW = append(notifyMW, middleware.SourceCheck(deps.PayFast.AllowedCIDRs, logger))
	} else {
		logger.Info("PayFast source check disabled")
	}
	payfastGroup.POST("/notify", paymentCallbackHandler.Notify, notifyMW...)

	// API group with auth
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(deps.APIKey))

	apiGroup.GET("/payments", paymentHandler.List)
	apiGroup.GET("/payments/stats", paymentHandler.Stats)
	apiGroup.GET("/payments/:reference", paymentHandler.Get)
	apiGroup.GET("/bookings/:id", bookingHandler.Get)
	apiGroup.POST("/mandates", mandateHandler.Create)
	apiGroup.GET("/mandates", mandateHandler.List)
	apiGroup.POST("/mandates/:id/cancel", mandateHandler.Cancel)

	// Metrics
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: deps.Gatherer,
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ipExtractor takes the client IP from the connection. Only when trusted
// proxies are configured is X-Forwarded-For read, and only through them.
func ipExtractor(proxies []string, logger *zap.Logger) echo.IPExtractor {
	if len(proxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range proxies {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("Ignoring invalid proxy CIDR", zap.String("cidr", cidr), zap.Error(err))
			continue
		}
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
