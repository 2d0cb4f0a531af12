// Package router registra las rutas de protocolo sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	connect "github.com/dropDatabas3/janus/internal/http/controllers/connect"
	mw "github.com/dropDatabas3/janus/internal/http/middlewares"
	"github.com/dropDatabas3/janus/internal/rate"
)

// Deps contiene lo necesario para armar el router.
type Deps struct {
	Controllers *connect.Controllers
	// CORS opcional; nil desactiva los headers.
	CORS mw.Middleware
	// RateLimiter opcional por IP para los endpoints back-channel.
	RateLimiter rate.Limiter
	// Metrics es el handler de /metrics (promhttp).
	Metrics http.Handler
}

// New arma el router completo.
func New(deps Deps) chi.Router {
	c := deps.Controllers
	r := chi.NewRouter()

	protocol := func(h http.HandlerFunc) http.Handler {
		chain := []mw.Middleware{
			mw.WithRecover(),
			mw.WithRequestID(),
			mw.WithSecurityHeaders(),
			mw.WithNoStore(),
		}
		if deps.CORS != nil {
			chain = append(chain, deps.CORS)
		}
		if deps.RateLimiter != nil {
			chain = append(chain, mw.WithRateLimit(deps.RateLimiter, mw.IPRateKey))
		}
		chain = append(chain, mw.WithLogging())
		return mw.ChainFunc(h, chain...)
	}

	r.Handle("/connect/authorize", protocol(c.Authorize.Authorize))
	r.Handle("/connect/token", protocol(c.Token.Token))
	r.Handle("/connect/deviceauthorization", protocol(c.Device.DeviceAuthorization))
	r.Handle("/connect/endsession", protocol(c.EndSession.EndSession))
	r.Handle("/connect/endsession/callback", protocol(c.EndSession.EndSessionCallback))
	r.Handle("/connect/revocation", protocol(c.Revoke.Revoke))
	r.Handle("/connect/introspect", protocol(c.Introspect.Introspect))

	r.Handle("/interaction/consent", protocol(c.Interaction.Consent))
	r.Handle("/interaction/device", protocol(c.Interaction.Device))
	r.Handle("/interaction/grants/revoke", protocol(c.Interaction.RevokeGrants))

	r.Handle("/.well-known/openid-configuration", protocol(c.Discovery.Discovery))
	r.Handle("/.well-known/jwks", protocol(c.Discovery.JWKS))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	return r
}
