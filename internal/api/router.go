package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"vaultsim/internal/config"
	"vaultsim/internal/metrics"
)

func NewRouter(h *Handler, feed http.Handler, m *metrics.Metrics, cfg config.ServerConfig) *mux.Router {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Метод не поддерживается.")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.Use(instrument(m))

	api.HandleFunc("/snapshot", h.Snapshot).Methods(http.MethodGet)
	api.HandleFunc("/vaults", h.Vaults).Methods(http.MethodGet)
	api.HandleFunc("/vaults/{id}", h.Vault).Methods(http.MethodGet)
	api.HandleFunc("/oracle", h.Oracle).Methods(http.MethodGet)
	api.HandleFunc("/protocol", h.Protocol).Methods(http.MethodGet)
	api.HandleFunc("/liquidations", h.Liquidations).Methods(http.MethodGet)
	api.HandleFunc("/keepers", h.Keepers).Methods(http.MethodGet)
	api.HandleFunc("/wallet", h.Wallet).Methods(http.MethodGet)
	api.HandleFunc("/transactions", h.Transactions).Methods(http.MethodGet)
	api.HandleFunc("/providers", h.Providers).Methods(http.MethodGet)

	limited := limit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst))
	post := func(path string, fn http.HandlerFunc) {
		api.Handle(path, limited(fn)).Methods(http.MethodPost)
	}
	post("/wallet/connect", h.Connect)
	post("/wallet/disconnect", h.Disconnect)
	post("/transactions", h.Submit)
	post("/vaults", h.CreateVault)
	post("/vaults/{id}/deposit", h.DepositVault)
	post("/vaults/{id}/repay", h.RepayVault)

	if feed != nil {
		r.Handle("/ws", feed)
	}
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

func limit(l *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "Превышен лимит запросов.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := ""
			if cur := mux.CurrentRoute(r); cur != nil {
				route, _ = cur.GetPathTemplate()
			}
			m.ObserveRequest(r.Method, route, rec.status)
		})
	}
}
