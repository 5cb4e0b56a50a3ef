// Package metrics exports credential lifecycle events as Prometheus metrics.
package metrics

import (
	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "momo_credentials"

// Result labels for metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	LookupHit  = "hit"
	LookupMiss = "miss"
)

// Metrics implements momo.Observer on top of Prometheus collectors.
type Metrics struct {
	// CacheLookups counts GetToken cache lookups by outcome.
	CacheLookups *prometheus.CounterVec

	// TokenIssuance counts token issuance attempts by result.
	TokenIssuance *prometheus.CounterVec

	// Provisioning counts API user and key provisioning attempts by result.
	Provisioning *prometheus.CounterVec

	// Invalidations counts explicit token invalidations.
	Invalidations *prometheus.CounterVec

	// TokenExpiry is the unix time at which the current token expires.
	TokenExpiry *prometheus.GaugeVec

	// TokenTTL is the lifetime reported for the most recent token.
	TokenTTL *prometheus.GaugeVec
}

var _ momo.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "cache_lookups_total",
				Help:      "Total number of token cache lookups",
			},
			[]string{"integration", "result"},
		),
		TokenIssuance: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "issuance_total",
				Help:      "Total number of token issuance attempts",
			},
			[]string{"integration", "result"},
		),
		Provisioning: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credentials",
				Name:      "provisioning_total",
				Help:      "Total number of API user and key provisioning attempts",
			},
			[]string{"integration", "result"},
		),
		Invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "invalidations_total",
				Help:      "Total number of token invalidations",
			},
			[]string{"integration"},
		),
		TokenExpiry: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "expiry_timestamp_seconds",
				Help:      "Unix time at which the current token expires (0 when none is cached)",
			},
			[]string{"integration"},
		),
		TokenTTL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "ttl_seconds",
				Help:      "Lifetime reported by the authority for the most recent token",
			},
			[]string{"integration"},
		),
	}

	reg.MustRegister(
		m.CacheLookups,
		m.TokenIssuance,
		m.Provisioning,
		m.Invalidations,
		m.TokenExpiry,
		m.TokenTTL,
	)

	return m
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}

	return ResultSuccess
}

// CacheHit implements momo.Observer.
func (m *Metrics) CacheHit(integration string) {
	m.CacheLookups.WithLabelValues(integration, LookupHit).Inc()
}

// CacheMiss implements momo.Observer.
func (m *Metrics) CacheMiss(integration string) {
	m.CacheLookups.WithLabelValues(integration, LookupMiss).Inc()
}

// TokenIssued implements momo.Observer.
func (m *Metrics) TokenIssued(integration string, token momo.BearerToken) {
	m.TokenIssuance.WithLabelValues(integration, ResultSuccess).Inc()
	m.TokenExpiry.WithLabelValues(integration).Set(float64(token.ExpiresAt.Unix()))
	m.TokenTTL.WithLabelValues(integration).Set(token.TTL.Seconds())
}

// TokenFailed implements momo.Observer.
func (m *Metrics) TokenFailed(integration string, _ error) {
	m.TokenIssuance.WithLabelValues(integration, ResultFailure).Inc()
	m.TokenExpiry.WithLabelValues(integration).Set(0)
}

// CredentialsProvisioned implements momo.Observer.
func (m *Metrics) CredentialsProvisioned(integration string, err error) {
	m.Provisioning.WithLabelValues(integration, result(err)).Inc()
}

// TokenInvalidated implements momo.Observer.
func (m *Metrics) TokenInvalidated(integration string) {
	m.Invalidations.WithLabelValues(integration).Inc()
	m.TokenExpiry.WithLabelValues(integration).Set(0)
}
