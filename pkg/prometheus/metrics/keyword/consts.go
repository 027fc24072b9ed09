package keyword

const (
	TotalHttpRequestsMetricName    = "http_requests_total"
	HttpResponseStatusesMetricName = "http_response_statuses_total"
	HttpResponseTimeMsMetricName   = "http_response_duration_ms"
	SketchAddedWeightMetricName    = "sketch_added_weight_total"
	SketchAddsMetricName           = "sketch_adds_total"
	SketchEstimatesMetricName      = "sketch_estimates_total"
	SketchMergesMetricName         = "sketch_merges_total"
	SketchErrorsMetricName         = "sketch_errors_total"
	SketchTotalWeightMetricName    = "sketch_total_weight"
	AdmissionDecisionsMetricName   = "admission_decisions_total"
)
