package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codebrew/pos-backend/api/controllers"
	inventorycontrollers "github.com/codebrew/pos-backend/api/controllers/inventory"
	ordercontrollers "github.com/codebrew/pos-backend/api/controllers/orders"
	"github.com/codebrew/pos-backend/api/middleware"
	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/internal/orders"
	"github.com/codebrew/pos-backend/internal/transfers"
	"github.com/codebrew/pos-backend/pkg/config"
	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/enums"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/redis"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Orders    orders.Service
	Inventory inventory.Service
	Transfers transfers.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["database"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	managers := middleware.RequireRoles(logg, enums.RoleAdmin, enums.RoleBranchOfficer)
	adminOnly := middleware.RequireRoles(logg, enums.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, cfg.Redis.IdempotencyTTL, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(
				middleware.RequireRoles(logg, enums.RoleCashier, enums.RoleBranchOfficer),
				middleware.RequireBranch(logg),
			).Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(managers).Post("/{orderId}/void", ordercontrollers.Void(deps.Orders, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.With(managers).Get("/branches/{branchId}", inventorycontrollers.BranchInventory(deps.Inventory, logg))
			r.With(managers).Get("/branches/{branchId}/alerts", inventorycontrollers.Alerts(deps.Inventory, logg))
			r.With(managers).Get("/logs", inventorycontrollers.Logs(deps.Inventory, logg))
			r.With(adminOnly).Get("/reconcile", inventorycontrollers.Reconcile(deps.Inventory, logg))
			r.With(adminOnly).Post("/records", inventorycontrollers.OpenRecord(deps.Inventory, logg))
			r.With(managers).Patch("/records/threshold", inventorycontrollers.SetThreshold(deps.Inventory, logg))
			r.With(managers).Post("/adjust", inventorycontrollers.Adjust(deps.Inventory, logg))
			r.With(managers).Post("/transfer", inventorycontrollers.Transfer(deps.Transfers, logg))
		})
	})

	return r
}
