package httpserver

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/service/settlement"
)

type settlementService interface {
	Checkout(ctx context.Context, in settlement.CheckoutInput) (*settlement.CheckoutResult, error)
	HandleCallback(ctx context.Context, cb domain.PaymentCallback) (*settlement.CallbackResult, error)
	Finalize(ctx context.Context, in settlement.FinalizeInput) (*settlement.CallbackResult, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type adminService interface {
	Login(ctx context.Context, email, password string) (string, time.Time, error)
	Authenticate(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
	ListOrders(ctx context.Context, filter orderrepo.ListFilter) ([]domain.Order, error)
	AccessTTLSeconds() int
}

type catalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	Settlement settlementService

	// Admin may be nil, in which case every admin route answers 401.
	Admin adminService

	// Catalog may be nil, in which case /api/products is not served.
	Catalog catalogService

	// KeyID is the public gateway key handed to the checkout widget.
	KeyID       string
	CORSOrigins []string
	Gatherer    prometheus.Gatherer
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db pinger, deps Deps) (*gin.Engine, error) {
	if deps.Settlement == nil {
		return nil, errors.New("settlement service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(requestLogger(logger), recovery(logger), cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	h := &handlers{settlement: deps.Settlement, admin: deps.Admin, catalog: deps.Catalog, keyID: deps.KeyID}

	api := router.Group("/api")
	api.POST("/checkout", h.checkout)
	api.POST("/payments/callback", h.paymentCallback)
	api.GET("/payments/callback", h.paymentCallback)
	api.POST("/orders", h.finalizeOrder)
	api.GET("/orders/:id", h.getOrder)
	if deps.Catalog != nil {
		api.GET("/products", h.listProducts)
	}

	adminGroup := api.Group("/admin")
	adminGroup.POST("/login", h.adminLogin)
	authed := adminGroup.Group("", h.requireAdmin)
	authed.POST("/logout", h.adminLogout)
	authed.GET("/orders", h.adminListOrders)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

type handlers struct {
	settlement settlementService
	admin      adminService
	catalog    catalogService
	keyID      string
}
