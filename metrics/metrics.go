// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRateLimited,
			Help: HelpTextRateLimited,
		},
		[]string{LabelScope},
	)
)

// Game Metrics
var (
	QuestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameQuestTransitions,
			Help: HelpTextQuestTransitions,
		},
		[]string{LabelStatus},
	)

	InsurancePackages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameInsurancePackages,
			Help: HelpTextInsurancePackages,
		},
		[]string{LabelOutcome},
	)

	InsuranceItemsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameInsuranceItemsDeleted,
			Help: HelpTextInsuranceItemsDeleted,
		},
	)

	InsuranceSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricNameInsuranceSweepSeconds,
			Help:    HelpTextInsuranceSweepSeconds,
			Buckets: prometheus.DefBuckets,
		},
	)

	SkillPointsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameSkillPointsAdded,
			Help: HelpTextSkillPointsAdded,
		},
		[]string{LabelSkill},
	)

	MailSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameMailSent,
			Help: HelpTextMailSent,
		},
		[]string{LabelType},
	)
)
