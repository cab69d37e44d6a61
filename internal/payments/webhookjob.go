package payments

// WebhookJobPayload is the body of a queued retry job created when a
// webhook delivery's first processing attempt fails (spec §4.10): enough
// to re-run ProcessWebhook without the original HTTP request.
type WebhookJobPayload struct {
	PaymentID       string `json:"payment_id"`
	EventID         string `json:"event_id"`
	Payload         []byte `json:"payload"`
	SignatureHeader string `json:"signature_header"`
	ProviderStatus  string `json:"provider_status"`
}
