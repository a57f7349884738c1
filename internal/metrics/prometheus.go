package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Counters are created at package load so code paths can increment them
// before, or without, registration. InitCustomMetrics only exposes them on a
// registry.
var (
	AuthCodesIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codegrant_auth_codes_issued_total",
		Help: "Total number of authorization codes issued.",
	})
	CodeExchangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codegrant_code_exchanges_total",
		Help: "Total number of successful authorization code exchanges.",
	})
	CodeExchangeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codegrant_code_exchange_failures_total",
		Help: "Total number of rejected authorization code exchanges, by error code.",
	}, []string{"reason"})
	TokensCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codegrant_tokens_created_total",
		Help: "Total number of access tokens created.",
	})
)

// InitCustomMetrics registers the package metrics with the given registerer.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := []prometheus.Collector{
		AuthCodesIssuedTotal,
		CodeExchangesTotal,
		CodeExchangeFailuresTotal,
		TokensCreatedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register Prometheus collector")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
