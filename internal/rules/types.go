package rules

import (
	"fmt"
	"time"
)

// AssetType determines how a successful match is routed downstream:
// CASH is credited directly, BTC is handed to the conversion pipeline.
type AssetType string

const (
	AssetCash AssetType = "CASH"
	AssetBTC  AssetType = "BTC"
)

// RuleStatus represents the lifecycle state of a match rule.
type RuleStatus string

const (
	StatusActive RuleStatus = "active"
	StatusPaused RuleStatus = "paused"
)

// MatchRule is a standing instruction: sponsor X matches recipient Y at
// Percent% of each save, up to CapCentsWeekly per calendar week.
type MatchRule struct {
	ID              string     `json:"id"`
	SponsorID       string     `json:"sponsor_id"`
	RecipientUserID string     `json:"recipient_user_id"`
	Percent         int        `json:"percent"`
	CapCentsWeekly  int64      `json:"cap_cents_weekly"`
	AssetType       AssetType  `json:"asset_type"`
	Status          RuleStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Validate checks the rule invariants before it is written.
func (r *MatchRule) Validate() error {
	if r.Percent < 0 || r.Percent > 100 {
		return fmt.Errorf("percent must be between 0 and 100, got %d", r.Percent)
	}
	if r.CapCentsWeekly < 0 {
		return fmt.Errorf("cap_cents_weekly must be non-negative, got %d", r.CapCentsWeekly)
	}
	switch r.AssetType {
	case AssetCash, AssetBTC:
	default:
		return fmt.Errorf("unknown asset_type %q", r.AssetType)
	}
	switch r.Status {
	case StatusActive, StatusPaused:
	default:
		return fmt.Errorf("unknown status %q", r.Status)
	}
	return nil
}

// Sponsor is the third party whose stored payment method funds matches.
// An empty PaymentMethodID means charges cannot be attempted yet and
// match events stay pending.
type Sponsor struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PaymentMethodID string    `json:"payment_method_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
