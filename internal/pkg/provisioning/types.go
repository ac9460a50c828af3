package provisioning

// NormalizedPayment is the provider-agnostic shape of one payment
// notification. Provider-specific field-name quirks are resolved by the
// per-provider parser before any business logic runs.
type NormalizedPayment struct {
	Provider      string
	TransactionID string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	ProductCode   string
	ProductName   string
	AmountCents   int64
	FeeCents      int64
	Status        string
}

// WebhookEventInput is the normalized input for audit-record persistence.
type WebhookEventInput struct {
	Provider      string
	EventType     string
	PayloadJSON   string
	CustomerEmail string
	TransactionID string
}
