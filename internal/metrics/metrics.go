package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors for the PayFast flow. Register them once with Register.
var (
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academypay",
		Name:      "payfast_notifications_total",
		Help:      "Inbound PayFast notifications by outcome.",
	}, []string{"outcome"})

	Confirmations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academypay",
		Name:      "payfast_confirmations_total",
		Help:      "Server-to-server confirmation calls by result.",
	}, []string{"result"})

	Checkouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academypay",
		Name:      "payfast_checkouts_total",
		Help:      "Checkouts started by redirect mode.",
	}, []string{"mode"})

	DebitRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academypay",
		Name:      "debit_order_runs_total",
		Help:      "Debit-order submissions by result.",
	}, []string{"result"})
)

// Register adds the collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Notifications, Confirmations, Checkouts, DebitRuns} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
