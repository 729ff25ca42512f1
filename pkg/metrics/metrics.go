package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Billing cycle metrics
	BillingEventsProcessed *prometheus.CounterVec
	BillingEventsRejected  *prometheus.CounterVec
	BillingFanoutLatency   prometheus.Histogram

	// Referral credit metrics
	CreditRecomputes   *prometheus.CounterVec
	CreditClampApplied prometheus.Counter
	CurrentCreditCents *prometheus.GaugeVec

	// Payout metrics
	PayoutsCreated  prometheus.Counter
	PayoutTransfers *prometheus.CounterVec
	TransferLatency prometheus.Histogram

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		BillingEventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "billing_events_processed_total",
			Help:      "Total number of billing cycle events processed, by cycle result",
		}, []string{"result"}),
		BillingEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "billing_events_rejected_total",
			Help:      "Total number of billing cycle events rejected at the boundary",
		}, []string{"reason"}),
		BillingFanoutLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "billing_fanout_duration_seconds",
			Help:      "Time spent fanning a billing event out to referral relationships",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		CreditRecomputes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "credit_recomputes_total",
			Help:      "Total number of referral credit recomputations",
		}, []string{"status"}),
		CreditClampApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "credit_cap_clamps_total",
			Help:      "Total number of recomputations where earned credit exceeded the cap",
		}),
		CurrentCreditCents: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_credit_cents",
			Help:      "Last written credit value per referrer role",
		}, []string{"role"}),

		PayoutsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "agent_payouts_created_total",
			Help:      "Total number of agent payouts created on threshold crossing",
		}),
		PayoutTransfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payout_transfers_total",
			Help:      "Total number of payout transfer attempts, by outcome",
		}, []string{"outcome"}),
		TransferLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payout_transfer_duration_seconds",
			Help:      "Duration of external payout transfer calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
	}
}
