package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const chargeTimeout = 10 * time.Second

// NewClient creates a new payment gateway client.
func NewClient(baseURL, apiKey string) Gateway {
	return &APIClient{
		httpClient: &http.Client{Timeout: chargeTimeout},
		BaseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Ensure APIClient implements the Gateway interface.
var _ Gateway = (*APIClient)(nil)

// ChargeOffSession executes a card charge without the cardholder present,
// using the sponsor's stored payment method. The call is bounded by the
// client timeout; a timeout surfaces as a plain error and the caller
// records the attempt as failed.
func (c *APIClient) ChargeOffSession(ctx context.Context, chargeReq ChargeRequest) (*ChargeResponse, error) {
	body, err := json.Marshal(chargeReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/charges", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create charge request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", chargeReq.IdempotencyKey)

	log.Debug("Requesting off-session charge", "url", url, "sponsorID", chargeReq.SponsorID, "amountCents", chargeReq.AmountCents, "idempotencyKey", chargeReq.IdempotencyKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read charge response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var charge ChargeResponse
		if err := json.Unmarshal(respBody, &charge); err != nil {
			return nil, fmt.Errorf("failed to decode charge response: %w", err)
		}
		if charge.Status != "succeeded" {
			return nil, &ChargeError{Code: charge.Status, Message: "charge did not succeed"}
		}
		log.Info("Charge succeeded", "reference", charge.Reference, "sponsorID", chargeReq.SponsorID, "amountCents", chargeReq.AmountCents)
		return &charge, nil

	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		var declined ChargeError
		if err := json.Unmarshal(respBody, &declined); err != nil {
			declined = ChargeError{Code: "declined", Message: string(respBody)}
		}
		log.Warn("Charge declined", "code", declined.Code, "sponsorID", chargeReq.SponsorID)
		return nil, &declined

	default:
		return nil, fmt.Errorf("unexpected gateway status %d: %s", resp.StatusCode, string(respBody))
	}
}
