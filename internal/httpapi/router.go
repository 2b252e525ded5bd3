package httpapi

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidx/pkg/middleware"
)

// NewRouter builds the full server handler: RequestID → CORS → write
// timeout → concurrency cap → metrics → mux, with admin routes
// additionally gated by requireAdminToken. writeTimeout mirrors the HTTP
// server's own WriteTimeout so a hung handler gets a clean response
// instead of a transport-level hang; it is not an independent,
// lower-level deadline on the scoring path itself.
func NewRouter(h *Handler, corsCfg middleware.CORSConfig, maxConcurrent int, writeTimeout time.Duration, metricsMW func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /doc/{doc_id}", h.GetDoc)
	mux.Handle("GET /admin/cache/stats", h.requireAdminToken(http.HandlerFunc(h.CacheStats)))
	mux.Handle("POST /admin/cache/invalidate", h.requireAdminToken(http.HandlerFunc(h.CacheInvalidate)))

	var chain http.Handler = mux
	if metricsMW != nil {
		chain = metricsMW(chain)
	}
	chain = middleware.Concurrency(maxConcurrent)(chain)
	if writeTimeout > 0 {
		chain = middleware.Timeout(writeTimeout)(chain)
	}
	chain = middleware.CORS(corsCfg)(chain)
	chain = middleware.RequestID(chain)
	return chain
}

// requireAdminToken gates a handler behind the X-ADMIN-TOKEN header
// matching the configured admin token. An empty configured token (no
// ADMIN_TOKEN set) means admin is disabled and every request is rejected.
func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-ADMIN-TOKEN")
		if h.adminToken == "" || token != h.adminToken {
			h.writeError(w, errors.New(errors.ErrUnauthorized, http.StatusUnauthorized, "missing or invalid admin token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
