package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenhall_auth_attempts_total",
		Help: "Auth flow submissions by method and outcome.",
	}, []string{"method", "outcome"})

	resetRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenhall_reset_requests_total",
		Help: "Password-reset requests by outcome.",
	}, []string{"outcome"})

	reconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenhall_profile_reconcile_failures_total",
		Help: "Profile reconciliations that failed after a successful authentication.",
	})
)
