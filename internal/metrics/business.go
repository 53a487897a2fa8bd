// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	freebiesActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsa_freebies_active",
		Help: "Currently active freebies by store (last refresh)",
	}, []string{"store"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_refresh_total",
		Help: "Refresh cycles by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_refresh_failures_total",
		Help: "Refresh failures by stage",
	}, []string{"stage"}) // stage=list|details|store|feed|notify

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fsa_refresh_duration_seconds",
		Help:    "Time spent per full refresh cycle",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	announcementsNewTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsa_announcements_new_total",
		Help: "Total announcements discovered since start",
	})

	announcementsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsa_announcements_ended_total",
		Help: "Total announcements marked ended since start",
	})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_webhook_events_total",
		Help: "Inbound webhook events by type and outcome",
	}, []string{"event", "outcome"}) // outcome=accepted|rejected|invalid

	upstreamStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsa_upstream_status",
		Help: "Upstream service status from webhook events (active status=1)",
	}, []string{"status"})

	notifyDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_notify_deliveries_total",
		Help: "Downstream notification deliveries by outcome",
	}, []string{"outcome"}) // outcome=delivered|failed|blocked

	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_cache_requests_total",
		Help: "Cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	feedWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsa_feed_write_errors_total",
		Help: "Total feed artifact write failures",
	})

	feedFreebies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsa_feed_freebies",
		Help: "Number of freebies in the last written feed artifact",
	})
)

var knownStatuses = []string{"ok", "partial", "rebooting", "fatal"}

// RecordActiveFreebies replaces the per-store active freebie gauges with the
// counts from the latest refresh. Stores absent from the map drop to zero.
func RecordActiveFreebies(byStore map[string]int) {
	freebiesActive.Reset()
	for store, n := range byStore {
		freebiesActive.WithLabelValues(store).Set(float64(n))
	}
}

// IncRefresh records a completed refresh cycle outcome.
func IncRefresh(outcome string) { refreshTotal.WithLabelValues(outcome).Inc() }

// IncRefreshFailure records a refresh failure for a specific stage.
func IncRefreshFailure(stage string) { refreshFailuresTotal.WithLabelValues(stage).Inc() }

// ObserveRefreshDuration records the duration of a full refresh cycle.
func ObserveRefreshDuration(d time.Duration) { refreshDuration.Observe(d.Seconds()) }

// AddNewAnnouncements bumps the discovery counter.
func AddNewAnnouncements(n int) { announcementsNewTotal.Add(float64(n)) }

// AddEndedAnnouncements bumps the ended counter.
func AddEndedAnnouncements(n int) { announcementsEndedTotal.Add(float64(n)) }

// IncWebhookEvent records an inbound webhook event.
func IncWebhookEvent(event, outcome string) {
	webhookEventsTotal.WithLabelValues(event, outcome).Inc()
}

// SetUpstreamStatus records the latest upstream service status. Known
// statuses are kept as explicit zeroed series so dashboards can alert on
// transitions; unknown values still get their own series.
func SetUpstreamStatus(status string) {
	known := false
	for _, s := range knownStatuses {
		value := 0.0
		if s == status {
			value = 1.0
			known = true
		}
		upstreamStatus.WithLabelValues(s).Set(value)
	}
	if !known && status != "" {
		upstreamStatus.WithLabelValues(status).Set(1.0)
	}
}

// IncNotifyDelivery records one downstream notification attempt outcome.
func IncNotifyDelivery(outcome string) {
	notifyDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// IncCacheHit records a cache hit.
func IncCacheHit() { cacheRequestsTotal.WithLabelValues("hit").Inc() }

// IncCacheMiss records a cache miss.
func IncCacheMiss() { cacheRequestsTotal.WithLabelValues("miss").Inc() }

// IncFeedWriteError records a failed feed artifact write.
func IncFeedWriteError() { feedWriteErrorsTotal.Inc() }

// SetFeedFreebies records how many freebies the last feed artifact carries.
func SetFeedFreebies(n int) { feedFreebies.Set(float64(n)) }
