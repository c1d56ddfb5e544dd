package metrics

// Metric names. Every name is registered in the Prometheus implementation;
// services refer to them through these constants only.
const (
	PaymentInitTotal            = "gateway_payment_init_requests_total"   // labels: result
	PaymentInitAmountTotal      = "gateway_payment_init_amount_total"     // labels: currency
	PaymentConfirmTotal         = "gateway_payment_confirm_total"         // labels: result
	PaymentCancelTotal          = "gateway_payment_cancel_total"          // labels: result, operation
	PaymentCheckTotal           = "gateway_payment_check_total"           // labels: source
	AuthFailuresTotal           = "gateway_auth_failures_total"           // labels: reason
	RateLimitHitsTotal          = "gateway_rate_limit_hits_total"         // labels: route
	ExpirySweepTransitionsTotal = "gateway_expiry_sweep_transitions_total" // labels: status
	BankRequestsTotal           = "gateway_bank_requests_total"           // labels: op, result
	BankRequestDurationSeconds  = "gateway_bank_request_duration_seconds" // labels: op
	PaymentsInFlight            = "gateway_payments_in_flight"            // gauge
)
