package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/database"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/events"
	"github.com/tableflow/api/internal/handler"
	mw "github.com/tableflow/api/internal/middleware"
	"github.com/tableflow/api/internal/service"
	"github.com/tableflow/api/internal/ws"
)

// New creates a Chi router with all application routes wired up under /api.
// Order events go to publisher; pass nil to deliver them to the hub only.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, publisher events.Publisher) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Kitchen displays authenticate with a cookie, so credentials are allowed.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if publisher == nil {
		publisher = hub
	}

	orderService := service.NewOrderService(pool, queries, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, publisher)
	sessionService := service.NewSessionService(queries, cfg.GuestSessionTTL)
	pinService := service.NewKitchenPinService(queries, cfg.JWTSecret, cfg.KDSTokenTTL)

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	customerHandler := handler.NewCustomerHandler(sessionService, orderService)
	kitchenHandler := handler.NewKitchenHandler(orderService, pinService, cfg.CookieSecure)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		authHandler.RegisterRoutes(r)
		r.Route("/customer", customerHandler.RegisterRoutes)

		r.Route("/branches/{branchId}/kitchen", func(r chi.Router) {
			kitchenHandler.RegisterPublicRoutes(r)

			// Kitchen displays: KDS token or kitchen-capable staff token
			r.Group(func(r chi.Router) {
				r.Use(mw.KitchenAccess(cfg.JWTSecret))
				kitchenHandler.RegisterOrderRoutes(r)
			})

			// PIN management: branch admins
			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleSuperAdmin))
				r.Use(mw.RequireBranch)
				kitchenHandler.RegisterAdminRoutes(r)
			})
		})

		// Order event stream for kitchen displays
		r.With(mw.KitchenAccess(cfg.JWTSecret)).Get("/ws/branches/{branchId}/orders", func(w http.ResponseWriter, r *http.Request) {
			branchID, _ := mw.BranchIDParam(r)
			ws.ServeWS(hub, branchID, w, r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
