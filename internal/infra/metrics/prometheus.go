package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const namespace = "reminder_scheduler"

// PrometheusSink implements Sink with the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	passesTotal       prometheus.Counter
	passErrorsTotal   prometheus.Counter
	passSkippedTotal  prometheus.Counter
	passDuration      prometheus.Histogram
	remindersTotal    prometheus.Counter
	notificationsSent prometheus.Counter
	successorsCreated prometheus.Counter
	itemFailures      *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer, log *logrus.Entry) *PrometheusSink {
	s := &PrometheusSink{
		passesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Total number of processing passes started.",
		}),
		passErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_errors_total",
			Help:      "Total number of passes that failed as a whole.",
		}),
		passSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_skipped_total",
			Help:      "Total number of passes skipped because another instance held the pass lock.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of each processing pass in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		remindersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_processed_total",
			Help:      "Total number of reminders claimed and triggered.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of reminder notifications written.",
		}),
		successorsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_reminders_created_total",
			Help:      "Total number of successor reminders created for recurring series.",
		}),
		itemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Per-reminder failures that did not fail the pass, by stage.",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{
		s.passesTotal, s.passErrorsTotal, s.passSkippedTotal, s.passDuration,
		s.remindersTotal, s.notificationsSent, s.successorsCreated, s.itemFailures,
	} {
		if err := reg.Register(c); err != nil {
			log.WithError(err).Warn("Failed to register metric collector")
		}
	}
	return s
}

func (s *PrometheusSink) PassStarted() {
	s.passesTotal.Inc()
}

func (s *PrometheusSink) PassCompleted(duration time.Duration, processed, notifications, successors int, err error) {
	s.passDuration.Observe(duration.Seconds())
	s.remindersTotal.Add(float64(processed))
	s.notificationsSent.Add(float64(notifications))
	s.successorsCreated.Add(float64(successors))
	if err != nil {
		s.passErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) PassSkipped() {
	s.passSkippedTotal.Inc()
}

func (s *PrometheusSink) ClaimLost()          { s.itemFailures.WithLabelValues("claim_lost").Inc() }
func (s *PrometheusSink) ClaimFailed()        { s.itemFailures.WithLabelValues("claim").Inc() }
func (s *PrometheusSink) NotificationFailed() { s.itemFailures.WithLabelValues("notification").Inc() }
func (s *PrometheusSink) SuccessorFailed()    { s.itemFailures.WithLabelValues("successor").Inc() }
func (s *PrometheusSink) RecurrenceFailed()   { s.itemFailures.WithLabelValues("recurrence").Inc() }
