package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichain-erp/medichain-erp/internal/ledger/accounts"
	"github.com/medichain-erp/medichain-erp/internal/ledger/balances"
	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
	"github.com/medichain-erp/medichain-erp/internal/pettycash"
	"github.com/medichain-erp/medichain-erp/internal/purchasing"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountsHandler   *accounts.Handler
	BalancesHandler   *balances.Handler
	JournalsHandler   *journals.Handler
	PurchasingHandler *purchasing.Handler
	PettyCashHandler  *pettycash.Handler
	Pool              *pgxpool.Pool
}

// NewRouter constructs the chi.Router with MediChain defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("readiness ping failed", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.BalancesHandler != nil {
			r.Route("/balances", params.BalancesHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		}
		if params.PurchasingHandler != nil {
			r.Route("/purchase-orders", params.PurchasingHandler.MountRoutes)
		}
		if params.PettyCashHandler != nil {
			r.Route("/petty-cash", params.PettyCashHandler.MountRoutes)
		}
	})

	return r
}
