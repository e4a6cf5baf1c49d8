package yoco

// CheckoutRequest describes a hosted checkout session to create.
type CheckoutRequest struct {
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Mode        string
	Metadata    map[string]interface{}
}

// Checkout is the subset of the provider's checkout response this backend
// cares about.
type Checkout struct {
	ID          string
	RedirectURL string
	SuccessURL  string
	CancelURL   string
	Mode        string
}

// WebhookEnvelope carries the three signature headers of an inbound
// delivery plus the exact raw body bytes as received. Verification must
// run over RawBody before any parsing; re-serializing a parsed payload is
// not format-stable and breaks the MAC.
type WebhookEnvelope struct {
	DeliveryID  string
	TimestampMs string
	Signature   string
	RawBody     []byte
}

// VerifyResult is the outcome of webhook authentication. Mode is resolved
// from whichever secret matched; Authenticated is false only in the
// proceed-unauthenticated posture.
type VerifyResult struct {
	Mode          string
	Authenticated bool
}
