package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"matrix-commission-backend/internal/ratelimit"
	"matrix-commission-backend/internal/security"
	"matrix-commission-backend/internal/service"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler exposes the engine over JSON/HTTP.
type Handler struct {
	services *service.Services
	tokens   security.TokenManager
	limiter  *ratelimit.Limiter
	db       Pinger
}

func NewHandler(services *service.Services, tokens security.TokenManager, limiter *ratelimit.Limiter, db Pinger) *Handler {
	return &Handler{
		services: services,
		tokens:   tokens,
		limiter:  limiter,
		db:       db,
	}
}

// RegisterRoutes registers every endpoint on router. Each route template must
// have an entry in config.RouteSecurityConfig, otherwise it is admin only.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Use(h.recoverMiddleware, h.rateLimitMiddleware, h.authMiddleware)

	// mux only runs router middleware on matched routes.
	router.NotFoundHandler = h.recoverMiddleware(h.rateLimitMiddleware(http.HandlerFunc(routeNotFound)))
	router.MethodNotAllowedHandler = h.recoverMiddleware(h.rateLimitMiddleware(http.HandlerFunc(methodNotAllowed)))

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/orders/paid", h.OrderPaid).Methods(http.MethodPost)

	api.HandleFunc("/users/{id}/ledger", h.UserLedger).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/wallet", h.UserWallet).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/eligibility", h.UserEligibility).Methods(http.MethodGet)

	api.HandleFunc("/admin/pool/distribute", h.DistributePool).Methods(http.MethodPost)
	api.HandleFunc("/admin/pool", h.PoolSummary).Methods(http.MethodGet)
	api.HandleFunc("/admin/ledger/{id}/reverse", h.ReverseEntry).Methods(http.MethodPost)
	api.HandleFunc("/admin/orders/{id}/settlement", h.OrderSettlement).Methods(http.MethodGet)
	api.HandleFunc("/admin/matrix/place", h.PlaceUser).Methods(http.MethodPost)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
