package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/janus/internal/domain"
	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// WithCORS habilita CORS para los endpoints de protocolo consultado el
// origin contra el CORSOriginService (normalmente la variante cacheada).
// Orígenes no permitidos no reciben headers CORS; el request sigue igual,
// el browser es quien corta.
func WithCORS(origins domain.CORSOriginService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				allowed, err := origins.IsOriginAllowed(r.Context(), origin)
				if err != nil {
					logger.From(r.Context()).Warn("cors origin check failed", logger.Err(err))
				}
				if allowed {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Vary", "Origin")
					if r.Method == http.MethodOptions {
						h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
						h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
						h.Set("Access-Control-Max-Age", "600")
						w.WriteHeader(http.StatusNoContent)
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
