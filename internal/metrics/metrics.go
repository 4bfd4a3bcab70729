package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/LegalDragon/funtime-identity/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Authentication flows

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "logins_total",
		Help:      "Login attempts by flow and outcome.",
	}, []string{"flow", "outcome"})

	OtpSendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "otp_sends_total",
		Help:      "OTP send attempts by outcome.",
	}, []string{"outcome"})

	OtpVerifiesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "otp_verifies_total",
		Help:      "OTP verification attempts by outcome.",
	}, []string{"outcome"})

	LinkOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "link_operations_total",
		Help:      "Credential link/unlink operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	// API key gate

	ApiKeyValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "api_key_validations_total",
		Help:      "API key validations by outcome.",
	}, []string{"outcome"})

	ApiKeyCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "api_key_cache_lookups_total",
		Help:      "API key cache lookups by result (hit, miss).",
	}, []string{"result"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "identity",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		LoginsTotal,
		OtpSendsTotal,
		OtpVerifiesTotal,
		LinkOpsTotal,
		ApiKeyValidationsTotal,
		ApiKeyCacheLookups,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus liveness and readiness probes on its own
// port, away from the public API.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
