package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal     = "raidsim_http_requests_total"
	MetricNameHTTPRequestDuration   = "raidsim_http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight  = "raidsim_http_requests_in_flight"
	MetricNameQuestTransitions      = "raidsim_quest_transitions_total"
	MetricNameInsurancePackages     = "raidsim_insurance_packages_total"
	MetricNameInsuranceItemsDeleted = "raidsim_insurance_items_deleted_total"
	MetricNameInsuranceSweepSeconds = "raidsim_insurance_sweep_duration_seconds"
	MetricNameSkillPointsAdded      = "raidsim_skill_points_added_total"
	MetricNameMailSent              = "raidsim_mail_sent_total"
	MetricNameRateLimited           = "raidsim_http_rate_limited_total"
)

// Help text
const (
	HelpTextHTTPRequestsTotal     = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration   = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight  = "Current number of HTTP requests being served"
	HelpTextQuestTransitions      = "Quest status transitions by resulting status"
	HelpTextInsurancePackages     = "Insurance packages processed by outcome"
	HelpTextInsuranceItemsDeleted = "Insured items lost to the insurance roll"
	HelpTextInsuranceSweepSeconds = "Duration of a full insurance sweep in seconds"
	HelpTextSkillPointsAdded      = "Skill progress added after low level scaling"
	HelpTextMailSent              = "Mail delivered by message type"
	HelpTextRateLimited           = "Requests rejected by the rate limiter by bucket scope"
)

// Labels
const (
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
	LabelSkill   = "skill"
	LabelType    = "type"
	LabelScope   = "scope"
)

// Insurance outcomes
const (
	OutcomeReturned = "returned"
	OutcomeLost     = "lost"
	OutcomeFailed   = "failed"
)

var HTTPLatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5}
