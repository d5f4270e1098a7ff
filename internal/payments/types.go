package payments

import (
	"fmt"
	"net/http"
)

// ChargeRequest describes one off-session charge against a sponsor's
// stored payment method. IdempotencyKey is the match event id, so a
// retried request can never double-charge.
type ChargeRequest struct {
	SponsorID       string `json:"sponsor_id"`
	PaymentMethodID string `json:"payment_method_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	IdempotencyKey  string `json:"-"`
}

// ChargeResponse is the gateway's synchronous answer to a charge attempt.
type ChargeResponse struct {
	Reference string `json:"id"`
	Status    string `json:"status"`
}

// ChargeError is a charge the gateway processed and declined (card
// declined, insufficient funds, expired card). It is an outcome, not an
// infrastructure failure, and is never retried in-process.
type ChargeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("charge declined (%s): %s", e.Code, e.Message)
}

// APIClient talks to the payment gateway's HTTP API.
type APIClient struct {
	httpClient *http.Client
	BaseURL    string
	apiKey     string
}
