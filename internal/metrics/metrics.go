// Package metrics expone las métricas Prometheus del provider.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// tokenRequestsTotal cuenta requests al token endpoint por grant y resultado.
	tokenRequestsTotal *prometheus.CounterVec

	// authorizeRequestsTotal cuenta requests al authorize endpoint por resultado
	// (success, login_required, consent_required, error).
	authorizeRequestsTotal *prometheus.CounterVec

	// grantsActive gaugea grants persistidos por tipo (lo setea el sweeper).
	grantsSwept prometheus.Counter

	// validationDuration mide la latencia de los validators por endpoint.
	validationDuration *prometheus.HistogramVec
)

// Register inicializa y registra las métricas. Devuelve el handler de /metrics.
func Register(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	once.Do(func() {
		tokenRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_requests_total",
			Help: "Requests al token endpoint por grant_type y resultado",
		}, []string{"grant_type", "result"})

		authorizeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorize_requests_total",
			Help: "Requests al authorize endpoint por resultado",
		}, []string{"result"})

		grantsSwept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "persisted_grants_swept_total",
			Help: "Grants vencidos eliminados por el sweeper",
		})

		validationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "request_validation_duration_seconds",
			Help:    "Latencia de los request validators",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"})

		reg.MustRegister(tokenRequestsTotal, authorizeRequestsTotal, grantsSwept, validationDuration)
	})
	return promhttp.Handler()
}

// TokenRequest registra un request al token endpoint.
func TokenRequest(grantType, result string) {
	if tokenRequestsTotal != nil {
		tokenRequestsTotal.WithLabelValues(grantType, result).Inc()
	}
}

// AuthorizeRequest registra un request al authorize endpoint.
func AuthorizeRequest(result string) {
	if authorizeRequestsTotal != nil {
		authorizeRequestsTotal.WithLabelValues(result).Inc()
	}
}

// GrantsSwept registra grants barridos.
func GrantsSwept(n int) {
	if grantsSwept != nil && n > 0 {
		grantsSwept.Add(float64(n))
	}
}

// ObserveValidation registra la latencia de un validator.
func ObserveValidation(endpoint string, seconds float64) {
	if validationDuration != nil {
		validationDuration.WithLabelValues(endpoint).Observe(seconds)
	}
}
