package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gateEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safecli_gate_evaluations_total",
		Help: "Total number of command evaluations by result (allowed, blocked)",
	}, []string{"result"})
	approvalRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safecli_approval_requests_created_total",
		Help: "Total number of approval requests created by the command gate",
	})
	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safecli_decisions_total",
		Help: "Total number of operator decisions by outcome (approved, denied, conflict)",
	}, []string{"outcome"})
	expirationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safecli_expirations_total",
		Help: "Total number of pending requests rejected by timeout, by trigger (read, schedule, decide)",
	}, []string{"trigger"})
	endpointRegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safecli_endpoint_registrations_total",
		Help: "Total number of endpoint registrations by kind (created, refreshed)",
	}, []string{"kind"})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(gateEvaluationsTotal, approvalRequestsTotal, decisionsTotal, expirationsTotal, endpointRegistrationsTotal)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncGateEvaluation counts one command evaluation.
func IncGateEvaluation(blocked bool) {
	if blocked {
		gateEvaluationsTotal.WithLabelValues("blocked").Inc()
		return
	}
	gateEvaluationsTotal.WithLabelValues("allowed").Inc()
}

// IncApprovalRequest counts one created approval request.
func IncApprovalRequest() { approvalRequestsTotal.Inc() }

// IncDecision counts an operator decision attempt by outcome.
func IncDecision(outcome string) { decisionsTotal.WithLabelValues(outcome).Inc() }

// AddExpirations counts requests rejected by timeout.
func AddExpirations(trigger string, n int) {
	if n > 0 {
		expirationsTotal.WithLabelValues(trigger).Add(float64(n))
	}
}

// IncEndpointRegistration counts a register call; refreshed is true when an existing row was reused.
func IncEndpointRegistration(refreshed bool) {
	if refreshed {
		endpointRegistrationsTotal.WithLabelValues("refreshed").Inc()
		return
	}
	endpointRegistrationsTotal.WithLabelValues("created").Inc()
}
