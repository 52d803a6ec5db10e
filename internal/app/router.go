package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/procura-hq/procura/internal/audit"
	"github.com/procura-hq/procura/internal/auth"
	"github.com/procura-hq/procura/internal/catalog/categories"
	"github.com/procura-hq/procura/internal/catalog/items"
	catalogservices "github.com/procura-hq/procura/internal/catalog/services"
	"github.com/procura-hq/procura/internal/catalog/vendors"
	"github.com/procura-hq/procura/internal/purchasing"
	"github.com/procura-hq/procura/internal/receiving"
	"github.com/procura-hq/procura/internal/requisitions"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthService        *auth.Service
	AuthHandler        *auth.Handler
	CategoriesHandler  *categories.Handler
	VendorsHandler     *vendors.Handler
	ItemsHandler       *items.Handler
	ServicesHandler    *catalogservices.Handler
	RequisitionHandler *requisitions.Handler
	PurchasingHandler  *purchasing.Handler
	ReceivingHandler   *receiving.Handler
	AuditHandler       *audit.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
		Auth:   params.AuthService,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/catalog", func(r chi.Router) {
		r.Route("/categories", params.CategoriesHandler.MountRoutes)
		r.Route("/vendors", params.VendorsHandler.MountRoutes)
		r.Route("/items", params.ItemsHandler.MountRoutes)
		r.Route("/services", params.ServicesHandler.MountRoutes)
	})
	r.Route("/requisitions", params.RequisitionHandler.MountRoutes)
	r.Route("/purchasing", params.PurchasingHandler.MountRoutes)
	r.Route("/receiving", params.ReceivingHandler.MountRoutes)
	r.Route("/audit", params.AuditHandler.MountRoutes)

	return r
}
