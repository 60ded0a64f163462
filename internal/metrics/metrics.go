// Package metrics exposes Prometheus collectors for the exchange domain.
//
// HTTP-level instrumentation lives in the middleware layer; the collectors
// here count business events so dashboards can separate "requests stored"
// from "operators notified" and "payments confirmed". Label sets are kept
// tiny to bound cardinality.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsCreated counts exchange requests accepted and persisted.
	RequestsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_requests_created_total",
		Help: "Total number of exchange requests persisted.",
	})

	// Notifications counts operator notification attempts by outcome
	// ("delivered" or "failed"). A failed delivery still leaves the
	// request stored, so the two counters diverging is a paging signal.
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_notifications_total",
		Help: "Operator notification outcomes for new exchange requests.",
	}, []string{"outcome"})

	// Completions counts requests reaching the completed state by the
	// path that confirmed them ("callback" or "admin").
	Completions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_completions_total",
		Help: "Exchange requests marked completed, by confirmation source.",
	}, []string{"source"})

	// DuplicateCallbacks counts confirmation callbacks that arrived for
	// an already-completed request and were absorbed as no-ops.
	DuplicateCallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_duplicate_callbacks_total",
		Help: "Confirmation callbacks ignored because the request was already completed.",
	})

	// PromoRedemptions counts promo codes consumed by exchange requests.
	PromoRedemptions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promo_codes_redeemed_total",
		Help: "Promo codes marked used by an exchange request.",
	})
)

func init() {
	prometheus.MustRegister(RequestsCreated, Notifications, Completions, DuplicateCallbacks, PromoRedemptions)
}
