package auth

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "site24x7_token_refresh_success_total",
		Help: "Successful token exchanges against the Zoho accounts endpoint",
	})
	refreshFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "site24x7_token_refresh_failure_total",
		Help: "Failed token exchanges against the Zoho accounts endpoint",
	})
	tokenValid = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "site24x7_token_valid",
		Help: "Access token validity (1=valid, 0=invalid or unknown)",
	})
)

// MetricsCollectors returns collectors for token manager health.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{refreshSuccess, refreshFailure, tokenValid}
}
