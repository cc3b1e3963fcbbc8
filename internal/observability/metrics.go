package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	MCheckoutTransitions MetricKey = "checkout_transitions_total"
	MRemovalAnomalies    MetricKey = "inventory_removal_anomalies_total"
	MDeliveryFallbacks   MetricKey = "delivery_fallbacks_total"
	MEventPublishFailed  MetricKey = "event_publish_failed_total"
)
